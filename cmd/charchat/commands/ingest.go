package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eoeldroal/3-character-chat/internal/embedder"
	"github.com/eoeldroal/3-character-chat/internal/ingestion"
	"github.com/eoeldroal/3-character-chat/internal/logging"
	"github.com/eoeldroal/3-character-chat/internal/rag"
)

// NewIngestCmd constructs the `charchat ingest` command, which loads
// persona knowledge documents into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var sources []string
	var label string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest persona knowledge documents into Qdrant",
		Long: `Ingest persona knowledge documents into the Qdrant vector store.

Each source is a local file path or an HTTP(S) URL. Documents are split
into paragraph-aligned chunks, embedded, and upserted. An ingest manifest
(SQLite) remembers chunk checksums so re-running with unchanged documents
is a no-op; set CHARCHAT_INGEST_DB=disabled to turn the manifest off.

Chunk labels default to a prefix match on the file or URL name (backstory,
favorites, relationships, daily, speech) and can be forced with --label.

Examples:
  charchat ingest --source knowledge/backstory.md --source knowledge/daily.md
  charchat ingest -s https://example.com/yoona/favorites.txt
  charchat ingest -s notes.md -l backstory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(sources) == 0 {
				return fmt.Errorf("ingest: at least one --source is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "openai"))
			store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
				Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
				Port:       getEnvInt("QDRANT_PORT", 6334),
				Collection: getEnvOrDefault("QDRANT_COLLECTION", "chatbot-knowledge"),
				VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to qdrant: %w", err)
			}
			defer func() { _ = store.Close() }()

			// Open the ingest manifest. CHARCHAT_INGEST_DB overrides the
			// default path (~/.charchat/ingest.db). Set to "disabled" to
			// re-ingest everything unconditionally.
			var manifest *ingestion.Manifest
			dbPath := os.Getenv("CHARCHAT_INGEST_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = ingestion.DefaultManifestPath()
					if err != nil {
						log.Warn("manifest: could not resolve default path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					m, mErr := ingestion.OpenManifest(dbPath)
					if mErr != nil {
						log.Warn("manifest: failed to open, disabling", slog.Any("error", mErr))
					} else {
						manifest = m
						defer func() { _ = m.Close() }()
						log.Info("manifest: opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("manifest: disabled via CHARCHAT_INGEST_DB=disabled")
			}

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				ChunkSize:    getEnvInt("CHARCHAT_CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("CHARCHAT_CHUNK_OVERLAP", 0),
				Manifest:     manifest,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			ingestSources := make([]ingestion.Source, 0, len(sources))
			for _, src := range sources {
				srcLabel := label
				if srcLabel == "" {
					srcLabel = ingestion.InferLabel(src)
				}
				ingestSources = append(ingestSources, ingestion.Source{
					Location: src,
					Label:    srcLabel,
				})
			}

			if err := pipeline.Ingest(ctx, ingestSources, func(msg string) {
				log.Info("ingest: " + msg)
			}); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingest complete", slog.Int("sources", len(ingestSources)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "Knowledge source (file path or URL); repeatable")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Force a label for all sources (default: inferred per source)")

	return cmd
}
