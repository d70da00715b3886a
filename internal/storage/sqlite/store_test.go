package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/trailsec/ragtrail/internal/audit"
	"github.com/trailsec/ragtrail/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	rec := &storage.StoredRecord{
		ID:      "rec-1",
		TraceID: "trace-1",
		Type:    audit.TypeRetrieverStart,
		Record: audit.Record{
			TraceID:   "trace-1",
			Type:      audit.TypeRetrieverStart,
			StartTime: "2026-03-01T12:00:00Z",
			Input:     `{"query":"drink recommendation"}`,
			Tools:     map[string]any{"k": float64(4)},
			Actor:     "alice",
		},
		CreatedAt: time.Now(),
	}
	if err := store.SaveRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}

	recs, err := store.ListByTrace(context.Background(), "trace-1")
	if err != nil {
		t.Fatalf("ListByTrace() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	got := recs[0].Record
	if got.Input != rec.Record.Input {
		t.Errorf("Input = %q, want %q", got.Input, rec.Record.Input)
	}
	if got.Actor != "alice" {
		t.Errorf("Actor = %q", got.Actor)
	}
	if got.Tools["k"] != float64(4) {
		t.Errorf("Tools = %v", got.Tools)
	}
}

func TestSQLiteStore_InsertionOrderPreserved(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	types := []string{audit.TypeRetrieverStart, audit.TypeRetrieverEnd, audit.TypeLLMStart, audit.TypeLLMEnd}
	for i, typ := range types {
		err := store.SaveRecord(context.Background(), &storage.StoredRecord{
			ID:        "rec-" + typ,
			TraceID:   "trace-1",
			Type:      typ,
			Record:    audit.Record{TraceID: "trace-1", Type: typ},
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("SaveRecord(%s) error = %v", typ, err)
		}
	}

	recs, err := store.ListByTrace(context.Background(), "trace-1")
	if err != nil {
		t.Fatalf("ListByTrace() error = %v", err)
	}
	if len(recs) != len(types) {
		t.Fatalf("records = %d, want %d", len(recs), len(types))
	}
	for i, typ := range types {
		if recs[i].Type != typ {
			t.Errorf("record[%d] type = %s, want %s", i, recs[i].Type, typ)
		}
	}
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t)

	rec := &storage.StoredRecord{ID: "rec-1", TraceID: "t", Type: audit.TypeLLMStart, CreatedAt: time.Now()}
	if err := store.SaveRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}
	if err := store.SaveRecord(context.Background(), rec); err == nil {
		t.Error("SaveRecord() expected error for duplicate id")
	}
}
