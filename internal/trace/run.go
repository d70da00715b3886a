// Package trace defines the run model and observer contract for pipeline
// lifecycle notifications.
//
// A Run is a snapshot of one traced stage execution (or of the whole
// pipeline). Observers receive snapshots at stage boundaries; they must treat
// them as read-only. The pipeline owns the run tree and is the only writer.
package trace

import (
	"context"
	"time"
)

// Stage identifies which pipeline stage a run belongs to.
type Stage string

const (
	StageRetriever Stage = "retriever"
	StageLLM       Stage = "llm"
	StageChain     Stage = "chain"
)

// Run is an immutable snapshot of a stage execution at one lifecycle point.
//
// TraceID is the correlation identifier shared by every run belonging to one
// pipeline invocation. ParentID is empty for the root run.
type Run struct {
	ID       string
	TraceID  string
	ParentID string
	Name     string
	Stage    Stage

	StartTime time.Time
	// EndTime is zero until the stage finishes.
	EndTime time.Time

	// Inputs carries stage inputs on start notifications (e.g. the query for
	// a retriever run, the rendered prompt for an LLM run).
	Inputs map[string]any
	// Outputs carries stage outputs on end notifications and is nil before
	// the stage finishes.
	Outputs map[string]any

	// Params holds stage configuration (model name, temperature, top-k, ...).
	Params map[string]any
	// Metadata holds caller-supplied context such as the acting user.
	Metadata map[string]string
}

// Candidates extracts the generated candidate texts from an LLM run's
// outputs. It reads defensively: a missing or malformed generations payload
// yields an empty slice, never an error.
func (r *Run) Candidates() []string {
	if r.Outputs == nil {
		return nil
	}
	raw, ok := r.Outputs["generations"]
	if !ok {
		return nil
	}
	var out []string
	switch gens := raw.(type) {
	case []string:
		out = append(out, gens...)
	case []any:
		for _, g := range gens {
			switch v := g.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				if text, ok := v["text"].(string); ok {
					out = append(out, text)
				}
			}
		}
	}
	return out
}

// Observer receives pipeline lifecycle notifications. Implementations must be
// safe for concurrent use: independent runs may execute in parallel and each
// call carries everything it needs in the Run snapshot.
//
// Observers are registered with the pipeline by injection; the pipeline calls
// each method synchronously, in stage order, and aborts the run if an
// observer returns an error.
type Observer interface {
	OnRetrievalStart(ctx context.Context, run *Run) error
	OnRetrievalEnd(ctx context.Context, run *Run) error
	OnGenerationStart(ctx context.Context, run *Run) error
	OnGenerationEnd(ctx context.Context, run *Run) error
}

// NopObserver ignores every notification. Useful as a default so pipeline
// code never nil-checks its observer.
type NopObserver struct{}

func (NopObserver) OnRetrievalStart(context.Context, *Run) error  { return nil }
func (NopObserver) OnRetrievalEnd(context.Context, *Run) error    { return nil }
func (NopObserver) OnGenerationStart(context.Context, *Run) error { return nil }
func (NopObserver) OnGenerationEnd(context.Context, *Run) error   { return nil }

var _ Observer = NopObserver{}

// MultiObserver fans one notification out to several observers in order,
// stopping at the first error.
type MultiObserver []Observer

func (m MultiObserver) OnRetrievalStart(ctx context.Context, run *Run) error {
	for _, o := range m {
		if err := o.OnRetrievalStart(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiObserver) OnRetrievalEnd(ctx context.Context, run *Run) error {
	for _, o := range m {
		if err := o.OnRetrievalEnd(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiObserver) OnGenerationStart(ctx context.Context, run *Run) error {
	for _, o := range m {
		if err := o.OnGenerationStart(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiObserver) OnGenerationEnd(ctx context.Context, run *Run) error {
	for _, o := range m {
		if err := o.OnGenerationEnd(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

var _ Observer = MultiObserver{}
