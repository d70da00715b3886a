package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/trailsec/ragtrail/internal/trace"
)

// captureSink records submissions in memory and optionally fails after a
// given number of successful calls.
type captureSink struct {
	mu        sync.Mutex
	records   []Record
	failAfter int
	err       error
}

func (s *captureSink) Submit(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && len(s.records) >= s.failAfter {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *captureSink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func retrievalRun(traceID string) *trace.Run {
	return &trace.Run{
		ID:        "run-1",
		TraceID:   traceID,
		ParentID:  "root-1",
		Stage:     trace.StageRetriever,
		StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Inputs:    map[string]any{"query": "drink recommendation"},
		Params:    map[string]any{"k": 4},
	}
}

func generationEndRun(traceID string, outputs map[string]any) *trace.Run {
	return &trace.Run{
		ID:       "run-2",
		TraceID:  traceID,
		ParentID: "root-1",
		Stage:    trace.StageLLM,
		EndTime:  time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		Outputs:  outputs,
		Params:   map[string]any{"model": "gpt-4o-mini"},
	}
}

func TestTracer_RetrievalStart(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink, WithActor("alice"))

	if err := tracer.OnRetrievalStart(context.Background(), retrievalRun("trace-1")); err != nil {
		t.Fatalf("OnRetrievalStart() error = %v", err)
	}

	recs := sink.all()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Type != TypeRetrieverStart {
		t.Errorf("Type = %q, want %q", rec.Type, TypeRetrieverStart)
	}
	if rec.TraceID != "trace-1" {
		t.Errorf("TraceID = %q, want trace-1", rec.TraceID)
	}
	if rec.Input != `{"query":"drink recommendation"}` {
		t.Errorf("Input = %q", rec.Input)
	}
	if rec.Actor != "alice" {
		t.Errorf("Actor = %q, want alice", rec.Actor)
	}
	if rec.StartTime == "" || rec.EndTime != "" {
		t.Errorf("timestamps: start=%q end=%q", rec.StartTime, rec.EndTime)
	}
}

func TestTracer_GenerationEnd_FanOut(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink)

	run := generationEndRun("trace-1", map[string]any{
		"generations": []any{
			map[string]any{"text": "A"},
			map[string]any{"text": "B"},
		},
	})
	if err := tracer.OnGenerationEnd(context.Background(), run); err != nil {
		t.Fatalf("OnGenerationEnd() error = %v", err)
	}

	recs := sink.all()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	for i, want := range []string{"A", "B"} {
		if recs[i].Output != want {
			t.Errorf("record %d output = %q, want %q", i, recs[i].Output, want)
		}
		if recs[i].TraceID != "trace-1" {
			t.Errorf("record %d trace id = %q", i, recs[i].TraceID)
		}
		if recs[i].Tools["candidate"] != i {
			t.Errorf("record %d candidate = %v, want %d", i, recs[i].Tools["candidate"], i)
		}
	}
}

func TestTracer_GenerationEnd_NoCandidates(t *testing.T) {
	tests := []struct {
		name    string
		outputs map[string]any
	}{
		{"nil outputs", nil},
		{"missing generations key", map[string]any{"usage": map[string]any{"tokens": 10}}},
		{"empty generations", map[string]any{"generations": []any{}}},
		{"non-text generations", map[string]any{"generations": []any{map[string]any{"image": "..."}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			tracer := NewTracer(sink)
			err := tracer.OnGenerationEnd(context.Background(), generationEndRun("trace-1", tt.outputs))
			if err != nil {
				t.Fatalf("OnGenerationEnd() error = %v", err)
			}
			if n := len(sink.all()); n != 0 {
				t.Errorf("records = %d, want 0", n)
			}
		})
	}
}

func TestTracer_FanOutAbortsOnFailure(t *testing.T) {
	sinkErr := errors.New("quota exceeded")
	sink := &captureSink{failAfter: 1, err: sinkErr}
	tracer := NewTracer(sink)

	run := generationEndRun("trace-1", map[string]any{
		"generations": []any{
			map[string]any{"text": "A"},
			map[string]any{"text": "B"},
			map[string]any{"text": "C"},
		},
	})
	err := tracer.OnGenerationEnd(context.Background(), run)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("OnGenerationEnd() error = %v, want wrapped %v", err, sinkErr)
	}
	if n := len(sink.all()); n != 1 {
		t.Errorf("records = %d, want 1 (abort after first failure)", n)
	}
}

func TestTracer_SinkFailurePropagates(t *testing.T) {
	sinkErr := errors.New("unauthorized")
	sink := &captureSink{failAfter: 0, err: sinkErr}
	tracer := NewTracer(sink)

	if err := tracer.OnRetrievalStart(context.Background(), retrievalRun("trace-1")); !errors.Is(err, sinkErr) {
		t.Errorf("OnRetrievalStart() error = %v, want %v", err, sinkErr)
	}
}

func TestTracer_MissingTraceID(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink)

	run := retrievalRun("")
	err := tracer.OnRetrievalStart(context.Background(), run)
	if !errors.Is(err, ErrMissingTraceID) {
		t.Fatalf("OnRetrievalStart() error = %v, want ErrMissingTraceID", err)
	}
	if n := len(sink.all()); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
}

func TestTracer_OrphanPolicy(t *testing.T) {
	run := retrievalRun("trace-1")
	run.ParentID = ""

	sink := &captureSink{}
	if err := NewTracer(sink).OnRetrievalStart(context.Background(), run); err != nil {
		t.Fatalf("OnRetrievalStart() error = %v", err)
	}
	if n := len(sink.all()); n != 0 {
		t.Errorf("orphan skipped: records = %d, want 0", n)
	}

	sink = &captureSink{}
	if err := NewTracer(sink, WithOrphanLogging(true)).OnRetrievalStart(context.Background(), run); err != nil {
		t.Fatalf("OnRetrievalStart() error = %v", err)
	}
	if n := len(sink.all()); n != 1 {
		t.Errorf("orphan logged: records = %d, want 1", n)
	}
}

// Out-of-order delivery degrades gracefully: an end before its start still
// produces a well-formed record rather than a panic.
func TestTracer_OutOfOrderEnd(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink)

	run := &trace.Run{
		ID:       "run-9",
		TraceID:  "trace-9",
		ParentID: "root-9",
		Stage:    trace.StageRetriever,
		EndTime:  time.Now(),
	}
	if err := tracer.OnRetrievalEnd(context.Background(), run); err != nil {
		t.Fatalf("OnRetrievalEnd() error = %v", err)
	}
	recs := sink.all()
	if len(recs) != 1 || recs[0].Type != TypeRetrieverEnd {
		t.Fatalf("records = %+v, want single retriever/end", recs)
	}
}

func TestTracer_ConcurrentRunsStaySeparated(t *testing.T) {
	sink := &captureSink{}
	tracer := NewTracer(sink)

	const runs = 16
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			traceID := "trace-" + string(rune('a'+i))
			run := retrievalRun(traceID)
			run.Inputs = map[string]any{"query": traceID}
			if err := tracer.OnRetrievalStart(context.Background(), run); err != nil {
				t.Errorf("OnRetrievalStart(%s) error = %v", traceID, err)
			}
		}(i)
	}
	wg.Wait()

	recs := sink.all()
	if len(recs) != runs {
		t.Fatalf("records = %d, want %d", len(recs), runs)
	}
	for _, rec := range recs {
		want := `{"query":"` + rec.TraceID + `"}`
		if rec.Input != want {
			t.Errorf("trace %s input = %q, want %q", rec.TraceID, rec.Input, want)
		}
	}
}
