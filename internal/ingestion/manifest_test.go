package ingestion

import (
	"context"
	"testing"
)

// openTestManifest opens an in-memory Manifest for use in tests.
func openTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := OpenManifest(":memory:")
	if err != nil {
		t.Fatalf("open in-memory manifest: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func Test_Manifest_RecordAndSeen(t *testing.T) {
	t.Parallel()
	m := openTestManifest(t)
	ctx := context.Background()

	seen, err := m.Seen(ctx, "abc123")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Error("unrecorded chunk reported as seen")
	}

	if err := m.Record(ctx, "abc123", "facts.txt"); err != nil {
		t.Fatalf("record: %v", err)
	}

	seen, err = m.Seen(ctx, "abc123")
	if err != nil {
		t.Fatalf("seen after record: %v", err)
	}
	if !seen {
		t.Error("recorded chunk not reported as seen")
	}
}

func Test_Manifest_RecordIsIdempotent(t *testing.T) {
	t.Parallel()
	m := openTestManifest(t)
	ctx := context.Background()

	if err := m.Record(ctx, "dup", "a.txt"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := m.Record(ctx, "dup", "b.txt"); err != nil {
		t.Fatalf("second record: %v", err)
	}

	seen, err := m.Seen(ctx, "dup")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Error("chunk not seen after duplicate record")
	}
}
