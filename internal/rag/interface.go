// Package rag defines the retrieval-augmented generation components:
// text embedding, vector search, and best-match document selection.
// Concrete backends (Qdrant, the HTTP embedders) satisfy these interfaces
// so the chat layer never depends on a specific service.
package rag

import (
	"context"
)

// Document is a unit of persona knowledge stored in the vector index.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin file path or URL of the document.
	Source string

	// Metadata holds arbitrary key-value pairs (category, chunk index, etc.).
	Metadata map[string]string
}

// Hit is a single search result: a stored document plus the raw distance
// reported by the index. Hits are returned in the index's own ranking
// order; the retriever must not rely on that order being sorted.
type Hit struct {
	// Content is the text content of the matched document.
	Content string

	// Distance is the raw vector distance (0 = identical, larger = less
	// similar). Converted to a similarity score by the retriever.
	Distance float64

	// Metadata holds the document's stored key-value payload.
	Metadata map[string]string
}

// Match is the retriever's selected document for a query, scored in
// similarity space. Transient — produced and consumed within one turn.
type Match struct {
	// Content is the retrieved document text, injected verbatim into the
	// prompt context block.
	Content string

	// Similarity is the score in (0,1] computed from the index distance.
	Similarity float64

	// Metadata holds the document's stored key-value payload.
	Metadata map[string]string
}

// VectorStore is the interface for persisting and searching document
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the topK nearest neighbours of the query embedding as
	// hits carrying content, distance, and metadata together.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Hit, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector
// embeddings. Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever selects the single best supporting document for a query, or
// reports that none qualifies. Implementations must be safe to call from
// multiple goroutines.
type Retriever interface {
	// BestMatch returns the highest-similarity document at or above the
	// configured threshold, or nil when no document qualifies. An error is
	// returned only for embedding failures; search failures degrade to a
	// nil match.
	BestMatch(ctx context.Context, query string) (*Match, error)
}
