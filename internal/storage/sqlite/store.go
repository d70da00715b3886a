package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/trailsec/ragtrail/internal/audit"
	"github.com/trailsec/ragtrail/internal/storage"
)

// Store is a SQLite implementation of RecordStore
type Store struct {
	db *sql.DB
}

var _ storage.RecordStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			trace_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_trace ON audit_records(trace_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveRecord(ctx context.Context, rec *storage.StoredRecord) error {
	payload, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_records (id, trace_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.TraceID, rec.Type, string(payload), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]*storage.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, type, payload, created_at FROM audit_records WHERE trace_id = ? ORDER BY created_at, rowid`,
		traceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*storage.StoredRecord
	for rows.Next() {
		var rec storage.StoredRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Type, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var stored audit.Record
		if err := json.Unmarshal([]byte(payload), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", rec.ID, err)
		}
		rec.Record = stored
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
