// Command charchat is the entry point for the persona chatbot.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// chat API for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/eoeldroal/3-character-chat/cmd/charchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
