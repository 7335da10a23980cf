// Package ingestion implements the knowledge ingestion pipeline.
// It reads persona knowledge documents from local files or HTTP(S) URLs,
// chunks the content, embeds each chunk, and upserts the results into the
// vector store. An optional SQLite manifest records chunk checksums so
// unchanged chunks are skipped on re-runs. This pipeline is invoked by the
// `charchat ingest` CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eoeldroal/3-character-chat/internal/rag"
)

// Source describes a knowledge document to be ingested.
type Source struct {
	// Location is a local file path or an HTTP(S) URL.
	Location string

	// Label tags the ingested chunks (e.g. "backstory", "favorites").
	// Defaults to "knowledge" if empty.
	Label string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 500 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive chunks.
	// Defaults to 50 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each URL fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// Manifest records ingested chunk checksums so re-runs skip unchanged
	// chunks. May be nil, in which case every chunk is (re-)upserted.
	Manifest *Manifest
}

// Pipeline orchestrates the read → chunk → embed → upsert flow for a set
// of knowledge sources.
type Pipeline struct {
	embedder   rag.Embedder
	store      rag.VectorStore
	cfg        *Config
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 50
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "charchat/1.0 (persona knowledge ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest reads, chunks, embeds, and stores all provided sources.
// It processes sources sequentially and returns the first error encountered.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		label := src.Label
		if label == "" {
			label = "knowledge"
		}

		progress(fmt.Sprintf("reading %s", src.Location))
		content, err := p.read(ctx, src.Location)
		if err != nil {
			return fmt.Errorf("ingestion: read failed for %s: %w", src.Location, err)
		}

		chunks := p.chunk(content)
		progress(fmt.Sprintf("chunked %s into %d chunks", src.Location, len(chunks)))

		var (
			pending []rag.Document
			texts   []string
			skipped int
		)
		for i, chunk := range chunks {
			id := chunkID(src.Location, chunk)
			if p.cfg.Manifest != nil {
				seen, err := p.cfg.Manifest.Seen(ctx, id)
				if err != nil {
					return fmt.Errorf("ingestion: manifest lookup failed: %w", err)
				}
				if seen {
					skipped++
					continue
				}
			}
			pending = append(pending, rag.Document{
				ID:      id,
				Content: chunk,
				Source:  src.Location,
				Metadata: map[string]string{
					"label":       label,
					"chunk_index": fmt.Sprintf("%d", i),
				},
			})
			texts = append(texts, chunk)
		}

		if len(pending) == 0 {
			progress(fmt.Sprintf("skipped %s: all %d chunks already ingested", src.Location, skipped))
			continue
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed for %s: %w", src.Location, err)
		}

		if err := p.store.Upsert(ctx, pending, embeddings); err != nil {
			return fmt.Errorf("ingestion: upsert failed for %s: %w", src.Location, err)
		}

		if p.cfg.Manifest != nil {
			for _, doc := range pending {
				if err := p.cfg.Manifest.Record(ctx, doc.ID, doc.Source); err != nil {
					return fmt.Errorf("ingestion: manifest record failed: %w", err)
				}
			}
		}

		progress(fmt.Sprintf("ingested %d chunks from %s (%d skipped)", len(pending), src.Location, skipped))
	}

	return nil
}

// read resolves a source location: URLs are fetched over HTTP, everything
// else is treated as a local file path.
func (p *Pipeline) read(ctx context.Context, location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return p.fetch(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
// Blank-line separated paragraphs shorter than the chunk size stay whole so
// individual persona facts are not split mid-sentence.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= p.cfg.ChunkSize {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, p.split(para)...)
	}
	return chunks
}

// split breaks an oversized paragraph into overlapping windows. Windows
// are measured in runes, not bytes, so multi-byte text is never cut
// mid-character.
func (p *Pipeline) split(text string) []string {
	runes := []rune(text)
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// chunkID generates a deterministic ID for a chunk from its source location
// and content, so edited chunks re-ingest while unchanged ones are skipped.
func chunkID(location, content string) string {
	h := sha256.Sum256([]byte(location + "\x00" + content))
	return fmt.Sprintf("%x", h[:16])
}
