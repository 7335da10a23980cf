package commands

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/eoeldroal/3-character-chat/internal/embedder"
	"github.com/eoeldroal/3-character-chat/internal/persona"
	"github.com/eoeldroal/3-character-chat/internal/prompt"
	"github.com/eoeldroal/3-character-chat/internal/rag"
)

// buildRetriever constructs the best-match retriever from environment
// configuration. Retrieval is optional: when QDRANT_HOST is unset, or the
// Qdrant connection fails, the returned retriever is nil (or backed by a
// nil store) and the chat core runs without knowledge context.
//
// The returned *rag.QdrantStore is non-nil only when Qdrant connected; it
// is used by the serve command to register a readiness pinger. The cleanup
// function is always safe to call.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore, func(), error) {
	noop := func() {}

	if os.Getenv("QDRANT_HOST") == "" {
		log.Info("retrieval disabled", slog.String("reason", "QDRANT_HOST not set"))
		return nil, nil, noop, nil
	}

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, nil, noop, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, noop, err
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "openai"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "chatbot-knowledge"),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		// Qdrant being down should not stop the chatbot; the retriever
		// degrades to no-context replies.
		log.Warn("qdrant unavailable, retrieval disabled", slog.Any("error", err))
		store = nil
	}

	var vs rag.VectorStore
	if store != nil {
		vs = store
	}
	retriever, err := rag.NewBestMatchRetriever(emb, vs, 0, 0)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, noop, err
	}

	cleanup := noop
	if store != nil {
		cleanup = func() { _ = store.Close() }
	}
	return retriever, store, cleanup, nil
}

// loadPrompts loads the persona (fatal only on malformed config) and wraps
// it in a prompt builder.
func loadPrompts(personaPath string, log *slog.Logger) (*prompt.Builder, *persona.Persona, error) {
	p, err := persona.Load(personaPath, log)
	if err != nil {
		return nil, nil, err
	}
	builder, err := prompt.NewBuilder(p)
	if err != nil {
		return nil, nil, err
	}
	return builder, p, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable,
// or fallback if the variable is unset or not a valid integer.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat returns the float value of the named environment variable,
// or fallback if the variable is unset or not a valid number.
func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
