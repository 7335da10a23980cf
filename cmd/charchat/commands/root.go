// Package commands defines all Cobra CLI commands for the charchat binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eoeldroal/3-character-chat/internal/audit"
	"github.com/eoeldroal/3-character-chat/internal/config"
	"github.com/eoeldroal/3-character-chat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "charchat",
		Short: "charchat — a persona chatbot with retrieval-backed memory",
		Long: `charchat is a character chatbot that answers in a configured persona.

Each reply is grounded in a knowledge base stored in Qdrant: the user's
message is embedded, the closest persona fact is retrieved, and the LLM
answers in character with that fact as context. Conversation history is
kept per session for the lifetime of the process.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.charchat/config.yaml).
See 'charchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env if present; real env vars still win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.charchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
