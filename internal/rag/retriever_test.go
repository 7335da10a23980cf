package rag

import (
	"context"
	"fmt"
	"math"
	"testing"
)

// fakeEmbedder returns a fixed vector, or an error when err is set.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeStore serves canned hits, or an error when err is set.
type fakeStore struct {
	hits []Hit
	err  error
}

func (f *fakeStore) Upsert(context.Context, []Document, [][]float32) error { return nil }
func (f *fakeStore) Close() error                                          { return nil }

func (f *fakeStore) Search(context.Context, []float32, int) ([]Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// newTestRetriever builds a retriever with default threshold/topK.
func newTestRetriever(t *testing.T, emb Embedder, store VectorStore) *BestMatchRetriever {
	t.Helper()
	r, err := NewBestMatchRetriever(emb, store, 0, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func Test_Similarity_Properties(t *testing.T) {
	t.Parallel()

	if got := Similarity(0); got != 1 {
		t.Errorf("similarity(0) must be 1, got %v", got)
	}

	// Strictly decreasing and bounded in (0,1].
	prev := math.Inf(1)
	for _, d := range []float64{0, 0.1, 0.5, 1, 2, 10, 1000} {
		s := Similarity(d)
		if s <= 0 || s > 1 {
			t.Errorf("similarity(%v) = %v out of (0,1]", d, s)
		}
		if s >= prev && d > 0 {
			t.Errorf("similarity must be strictly decreasing: sim(%v)=%v >= prev %v", d, s, prev)
		}
		prev = s
	}
}

func Test_BestMatch_SelectsHighestSimilarity(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []Hit{
		{Content: "far", Distance: 1.0},    // sim 0.5
		{Content: "near", Distance: 0.2},   // sim ~0.83
		{Content: "middle", Distance: 0.5}, // sim ~0.67
	}}
	r := newTestRetriever(t, &fakeEmbedder{}, store)

	m, err := r.BestMatch(context.Background(), "학식 추천해줘")
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if m == nil {
		t.Fatal("want a match, got nil")
	}
	if m.Content != "near" {
		t.Errorf("want highest-similarity hit, got %q", m.Content)
	}
	if m.Similarity < DefaultThreshold {
		t.Errorf("selected similarity %v below threshold", m.Similarity)
	}
}

func Test_BestMatch_BelowThresholdIsAbsent(t *testing.T) {
	t.Parallel()

	// Distance 2 → similarity 1/3, below the 0.45 default.
	store := &fakeStore{hits: []Hit{
		{Content: "unrelated", Distance: 2.0},
		{Content: "also unrelated", Distance: 3.0},
	}}
	r := newTestRetriever(t, &fakeEmbedder{}, store)

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if m != nil {
		t.Errorf("no candidate meets threshold, want nil match, got %+v", m)
	}
}

func Test_BestMatch_TieFirstSeenWins(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []Hit{
		{Content: "first", Distance: 0.5},
		{Content: "second", Distance: 0.5},
	}}
	r := newTestRetriever(t, &fakeEmbedder{}, store)

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if m == nil || m.Content != "first" {
		t.Errorf("equal scores must keep the first-seen candidate, got %+v", m)
	}
}

func Test_BestMatch_UnsortedHitsStillCorrect(t *testing.T) {
	t.Parallel()

	// Best hit deliberately last — the scan must not assume pre-sorting.
	store := &fakeStore{hits: []Hit{
		{Content: "ok", Distance: 0.8},
		{Content: "best", Distance: 0.1},
	}}
	r := newTestRetriever(t, &fakeEmbedder{}, store)

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if m == nil || m.Content != "best" {
		t.Errorf("want the lowest-distance hit regardless of order, got %+v", m)
	}
}

func Test_BestMatch_EmptyResultsAbsent(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, &fakeStore{})

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("best match: %v", err)
	}
	if m != nil {
		t.Errorf("zero candidates must be absent, got %+v", m)
	}
}

func Test_BestMatch_NilStoreDisablesRetrieval(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, nil)

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("nil store must not error: %v", err)
	}
	if m != nil {
		t.Errorf("nil store must yield no match, got %+v", m)
	}
}

func Test_BestMatch_SearchErrorDegradesToAbsent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: fmt.Errorf("connection refused")}
	r := newTestRetriever(t, &fakeEmbedder{}, store)

	m, err := r.BestMatch(context.Background(), "query")
	if err != nil {
		t.Fatalf("search errors must be swallowed, got: %v", err)
	}
	if m != nil {
		t.Errorf("failed search must yield no match, got %+v", m)
	}
}

func Test_BestMatch_EmbedErrorPropagates(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{err: fmt.Errorf("quota exceeded")}, &fakeStore{})

	if _, err := r.BestMatch(context.Background(), "query"); err == nil {
		t.Fatal("embedding failure must propagate as an error")
	}
}
