package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trailsec/ragtrail/internal/trace"
)

// ErrMissingTraceID is returned when a notification carries no correlation
// identifier. Nothing is submitted for such a run.
var ErrMissingTraceID = errors.New("audit: run has no trace id")

// Sink accepts audit records for append-only storage. Retry and buffering,
// if any, are the sink's concern; the tracer never retries.
type Sink interface {
	Submit(ctx context.Context, records []Record) error
}

// Tracer translates pipeline lifecycle notifications into audit records.
//
// It is stateless: each handler call reads only its Run snapshot, so one
// Tracer can safely observe any number of concurrent runs. Sink failures
// propagate to the caller so dropped audit records stay observable.
type Tracer struct {
	sink       Sink
	actor      string
	logOrphans bool
	logger     *slog.Logger
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithActor sets the actor identity attached to every record.
func WithActor(actor string) Option {
	return func(t *Tracer) { t.actor = actor }
}

// WithOrphanLogging controls whether sub-runs that were never attached to a
// parent run are still logged. Default is to skip them.
func WithOrphanLogging(enabled bool) Option {
	return func(t *Tracer) { t.logOrphans = enabled }
}

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) { t.logger = logger }
}

// NewTracer builds a Tracer submitting to sink. The sink handle arrives
// already configured with its endpoint and credentials.
func NewTracer(sink Sink, opts ...Option) *Tracer {
	t := &Tracer{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracer) OnRetrievalStart(ctx context.Context, run *trace.Run) error {
	rec, err := t.startRecord(run, TypeRetrieverStart)
	if err != nil || rec == nil {
		return err
	}
	return t.sink.Submit(ctx, []Record{*rec})
}

func (t *Tracer) OnRetrievalEnd(ctx context.Context, run *trace.Run) error {
	rec, err := t.endRecord(run, TypeRetrieverEnd)
	if err != nil || rec == nil {
		return err
	}
	rec.Output = plainJSON(run.Outputs)
	return t.sink.Submit(ctx, []Record{*rec})
}

func (t *Tracer) OnGenerationStart(ctx context.Context, run *trace.Run) error {
	rec, err := t.startRecord(run, TypeLLMStart)
	if err != nil || rec == nil {
		return err
	}
	return t.sink.Submit(ctx, []Record{*rec})
}

// OnGenerationEnd fans out to one record per generated candidate text. Zero
// usable candidates is a silent no-op. A sink failure mid-fan-out aborts the
// remaining candidates and reports which one failed.
func (t *Tracer) OnGenerationEnd(ctx context.Context, run *trace.Run) error {
	rec, err := t.endRecord(run, TypeLLMEnd)
	if err != nil || rec == nil {
		return err
	}
	for i, text := range run.Candidates() {
		out := *rec
		out.Output = text
		out.Tools = withCandidate(rec.Tools, i)
		if err := t.sink.Submit(ctx, []Record{out}); err != nil {
			return fmt.Errorf("audit: candidate %d: %w", i, err)
		}
	}
	return nil
}

// startRecord builds the shared skeleton for a start notification. A nil
// record with nil error means the run was skipped (orphan policy).
func (t *Tracer) startRecord(run *trace.Run, eventType string) (*Record, error) {
	if err := t.check(run, eventType); err != nil {
		return nil, err
	}
	if t.skipOrphan(run, eventType) {
		return nil, nil
	}
	input, err := CanonicalJSON(inputsOrEmpty(run))
	if err != nil {
		return nil, err
	}
	return &Record{
		TraceID:   run.TraceID,
		Type:      eventType,
		StartTime: formatTime(run.StartTime),
		Tools:     run.Params,
		Input:     input,
		Actor:     t.actor,
	}, nil
}

func (t *Tracer) endRecord(run *trace.Run, eventType string) (*Record, error) {
	if err := t.check(run, eventType); err != nil {
		return nil, err
	}
	if t.skipOrphan(run, eventType) {
		return nil, nil
	}
	return &Record{
		TraceID: run.TraceID,
		Type:    eventType,
		EndTime: formatTime(run.EndTime),
		Tools:   run.Params,
		Actor:   t.actor,
	}, nil
}

func (t *Tracer) check(run *trace.Run, eventType string) error {
	if run == nil || run.TraceID == "" {
		return fmt.Errorf("%s: %w", eventType, ErrMissingTraceID)
	}
	return nil
}

func (t *Tracer) skipOrphan(run *trace.Run, eventType string) bool {
	if run.ParentID != "" || t.logOrphans {
		return false
	}
	t.logger.Debug("skipping orphaned run",
		slog.String("trace_id", run.TraceID),
		slog.String("type", eventType),
	)
	return true
}

// plainJSON encodes outputs without canonical ordering. Outputs are
// informational and not part of the tamper-evidence contract.
func plainJSON(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func inputsOrEmpty(run *trace.Run) map[string]any {
	if run.Inputs == nil {
		return map[string]any{}
	}
	return run.Inputs
}

func withCandidate(tools map[string]any, index int) map[string]any {
	out := make(map[string]any, len(tools)+1)
	for k, v := range tools {
		out[k] = v
	}
	out["candidate"] = index
	return out
}

var _ trace.Observer = (*Tracer)(nil)
