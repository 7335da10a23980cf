package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eoeldroal/3-character-chat/internal/logging"
)

// Default search parameters used by the responder. Tunable per instance,
// but these values are the behavioural baseline.
const (
	// DefaultThreshold is the minimum similarity a document needs to be
	// used as context.
	DefaultThreshold = 0.45

	// DefaultTopK is the number of nearest neighbours requested per query.
	DefaultTopK = 5
)

// Similarity converts a raw index distance into a similarity score using
// 1/(1+d). Distance 0 maps to 1; larger distances decay toward 0. This is
// a normalisation convention, not a probability.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// BestMatchRetriever implements Retriever over an Embedder and a
// VectorStore. The store may be nil, in which case retrieval is disabled
// and every query returns no match — the chat pipeline runs without
// context rather than failing.
type BestMatchRetriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search. Nil disables retrieval.
	store VectorStore

	// threshold is the minimum similarity for a document to qualify.
	threshold float64

	// topK is the number of nearest neighbours requested per query.
	topK int
}

// NewBestMatchRetriever constructs a BestMatchRetriever. store may be nil
// (retrieval disabled). threshold and topK fall back to the package
// defaults when zero.
func NewBestMatchRetriever(embedder Embedder, store VectorStore, threshold float64, topK int) (*BestMatchRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &BestMatchRetriever{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		topK:      topK,
	}, nil
}

// BestMatch embeds the query, searches the index, and selects the
// highest-similarity hit at or above the threshold.
//
// Candidates are scanned in the order the index returned them, keeping a
// running maximum and replacing it only on strict improvement — so among
// equal scores the first-seen candidate wins, and the result is correct
// even if the index did not pre-sort its hits.
//
// Error contract: an embedding failure is returned to the caller (the turn
// cannot proceed without a query vector); a search failure is logged and
// degrades to a nil match.
func (r *BestMatchRetriever) BestMatch(ctx context.Context, query string) (*Match, error) {
	if r.store == nil {
		return nil, nil
	}

	log := logging.FromContext(ctx)

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := r.store.Search(ctx, embeddings[0], r.topK)
	if err != nil {
		// Retrieval is best-effort — a failed search means "no context",
		// never an aborted turn.
		log.Warn("rag: search failed, continuing without context", slog.Any("error", err))
		return nil, nil
	}

	var best *Match
	for _, hit := range hits {
		sim := Similarity(hit.Distance)

		log.Debug("rag: candidate",
			slog.String("document", preview(hit.Content, 50)),
			slog.Float64("distance", hit.Distance),
			slog.Float64("similarity", sim),
		)

		if sim >= r.threshold && (best == nil || sim > best.Similarity) {
			best = &Match{
				Content:    hit.Content,
				Similarity: sim,
				Metadata:   hit.Metadata,
			}
		}
	}

	if best == nil {
		log.Debug("rag: no document met threshold",
			slog.Float64("threshold", r.threshold),
			slog.Int("candidates", len(hits)),
		)
		return nil, nil
	}

	log.Debug("rag: selected document",
		slog.Float64("similarity", best.Similarity),
		slog.String("document", preview(best.Content, 50)),
	)
	return best, nil
}

// preview truncates s to at most n runes for log output.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
