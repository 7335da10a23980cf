package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/eoeldroal/3-character-chat/internal/budget"
	"github.com/eoeldroal/3-character-chat/internal/chat"
	"github.com/eoeldroal/3-character-chat/internal/logging"
	"github.com/eoeldroal/3-character-chat/internal/provider"
	"github.com/eoeldroal/3-character-chat/internal/server"
	"github.com/eoeldroal/3-character-chat/internal/session"
	"github.com/eoeldroal/3-character-chat/internal/tracing"
)

// NewServeCmd constructs the `charchat serve` command, which starts the
// HTTP chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var personaPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the charchat HTTP API server",
		Long: `Start the charchat HTTP API server on localhost.

The server exposes POST /api/chat for persona conversations, plus health,
readiness and Prometheus metrics endpoints. Conversation history is kept
in memory per session and is lost on restart.

Examples:
  charchat serve
  charchat serve --port 9090
  MODEL_PROVIDER=azure charchat serve --persona config/yoona.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv(provider.Tuning{
				MaxTokens:   chat.MaxResponseTokens,
				Temperature: chat.Temperature,
			})
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			prompts, p, err := loadPrompts(personaPath, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("persona ready", slog.String("name", p.Name))

			retriever, store, closeRetriever, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
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
				return fmt.Errorf("serve: failed to initialise responder: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
			}
			if store != nil {
				pingers = append(pingers, server.NewQdrantPinger(store.Client()))
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("CHARCHAT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("CHARCHAT_PORT", port)
			}

			srv, err := server.New(responder, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: getEnvFloat("CHARCHAT_RATE_LIMIT", 0),
				RateBurst: getEnvInt("CHARCHAT_RATE_BURST", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&personaPath, "persona", "", "Path to the persona config JSON (default $PERSONA_CONFIG)")

	return cmd
}
