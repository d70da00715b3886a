// Package audit maps pipeline lifecycle notifications onto records in an
// external tamper-evident audit log.
package audit

import "time"

// Event type strings, one per lifecycle edge.
const (
	TypeRetrieverStart = "retriever/start"
	TypeRetrieverEnd   = "retriever/end"
	TypeLLMStart       = "llm/start"
	TypeLLMEnd         = "llm/end"
)

// Record is one document submitted to the audit sink.
//
// Input holds the canonical encoding of the stage inputs: identical logical
// content always serializes to identical bytes, which is what makes the
// sink's tamper-evidence hashing meaningful. Output is informational and uses
// ordinary JSON encoding.
type Record struct {
	TraceID   string         `json:"trace_id"`
	Type      string         `json:"type"`
	StartTime string         `json:"start_time,omitempty"`
	EndTime   string         `json:"end_time,omitempty"`
	Tools     map[string]any `json:"tools,omitempty"`
	Input     string         `json:"input,omitempty"`
	Output    string         `json:"output,omitempty"`
	Actor     string         `json:"actor,omitempty"`
}

// formatTime renders timestamps the way the sink expects them: RFC3339Nano
// in UTC. A zero time renders as empty so omitempty drops the field.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
