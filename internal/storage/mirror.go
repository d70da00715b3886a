package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trailsec/ragtrail/internal/audit"
)

// MirrorSink submits to the external sink and, on success, writes a local
// copy of each record. A mirror write failure is logged but does not fail the
// submission: the authoritative record already landed in the external log.
type MirrorSink struct {
	next   audit.Sink
	store  RecordStore
	logger *slog.Logger
}

// NewMirrorSink wraps next with local mirroring into store.
func NewMirrorSink(next audit.Sink, store RecordStore, logger *slog.Logger) *MirrorSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorSink{next: next, store: store, logger: logger}
}

func (m *MirrorSink) Submit(ctx context.Context, records []audit.Record) error {
	if err := m.next.Submit(ctx, records); err != nil {
		return err
	}
	for _, rec := range records {
		stored := &StoredRecord{
			ID:        "rec_" + uuid.New().String(),
			TraceID:   rec.TraceID,
			Type:      rec.Type,
			Record:    rec,
			CreatedAt: time.Now(),
		}
		if err := m.store.SaveRecord(ctx, stored); err != nil {
			m.logger.Error("failed to mirror audit record",
				slog.String("trace_id", rec.TraceID),
				slog.String("type", rec.Type),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

var _ audit.Sink = (*MirrorSink)(nil)
