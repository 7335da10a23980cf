package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eoeldroal/3-character-chat/internal/budget"
	"github.com/eoeldroal/3-character-chat/internal/chat"
	"github.com/eoeldroal/3-character-chat/internal/logging"
	"github.com/eoeldroal/3-character-chat/internal/provider"
	"github.com/eoeldroal/3-character-chat/internal/session"
)

// NewChatCmd constructs the `charchat chat` command, which talks to the
// persona directly from the terminal without starting the HTTP server.
func NewChatCmd() *cobra.Command {
	var username string
	var sessionID string
	var personaPath string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the persona from the terminal",
		Long: `Chat with the configured persona without starting the HTTP server.

With a message argument, sends that single message and prints the reply.
Without arguments, starts an interactive loop reading from stdin; type
"exit" or press Ctrl-D to leave. History lives in memory for the duration
of the process.

Examples:
  charchat chat "안녕! 오늘 뭐 했어?"
  charchat chat --username 민수
  charchat chat --persona config/yoona.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			providerCfg := provider.ConfigFromEnv(provider.Tuning{
				MaxTokens:   chat.MaxResponseTokens,
				Temperature: chat.Temperature,
			})
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise model provider: %w", err)
			}

			prompts, _, err := loadPrompts(personaPath, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			retriever, _, closeRetriever, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer closeRetriever()

			responder, err := chat.New(&chat.Config{
				ChatModel:        chatModel,
				Retriever:        retriever,
				Prompts:          prompts,
				Sessions:         session.NewStore(),
				MaxContextTokens: budget.DefaultMaxContextTokens,
			})
			if err != nil {
				return fmt.Errorf("chat: failed to initialise responder: %w", err)
			}

			if len(args) > 0 {
				result := responder.Respond(ctx, strings.Join(args, " "), username, sessionID)
				fmt.Println(result.Reply)
				return nil
			}

			// Interactive loop. Open with the persona greeting so the
			// terminal session starts the same way the web client does.
			greeting := responder.Respond(ctx, "init", username, sessionID)
			fmt.Println(greeting.Reply)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}
				result := responder.Respond(ctx, line, username, sessionID)
				fmt.Println(result.Reply)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: read stdin: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Name the persona addresses you by")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID for conversation history")
	cmd.Flags().StringVar(&personaPath, "persona", "", "Path to the persona config JSON (default $PERSONA_CONFIG)")

	return cmd
}
