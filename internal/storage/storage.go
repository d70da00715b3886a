// Package storage defines the local audit mirror. The external sink is the
// authoritative, tamper-evident log; the mirror keeps a queryable local copy
// so operators can inspect a run without round-tripping to the service.
package storage

import (
	"context"
	"time"

	"github.com/trailsec/ragtrail/internal/audit"
)

// StoredRecord is an audit record as kept in the mirror.
type StoredRecord struct {
	ID        string
	TraceID   string
	Type      string
	Record    audit.Record
	CreatedAt time.Time
}

// RecordStore persists mirrored audit records.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *StoredRecord) error
	// ListByTrace returns all records for a trace in insertion order.
	ListByTrace(ctx context.Context, traceID string) ([]*StoredRecord, error)
	Close() error
}
