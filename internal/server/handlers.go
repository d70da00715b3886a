package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trailsec/ragtrail/internal/audit"
	"github.com/trailsec/ragtrail/internal/pipeline"
	"github.com/trailsec/ragtrail/internal/storage"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the answer plus the trace id correlating its audit records.
type AskResponse struct {
	TraceID    string   `json:"trace_id"`
	Answer     string   `json:"answer"`
	Candidates []string `json:"candidates,omitempty"`
}

// AskHandler answers questions through the audited pipeline.
//
// The tracer is built per request so the acting user from the request context
// ends up on every audit record of that run. Tracers are stateless, so this
// costs one small allocation.
type AskHandler struct {
	retriever  pipeline.Retriever
	generator  pipeline.Generator
	sink       audit.Sink
	logOrphans bool
}

// NewAskHandler creates the handler. sink receives the run's audit records.
func NewAskHandler(retriever pipeline.Retriever, generator pipeline.Generator, sink audit.Sink, logOrphans bool) *AskHandler {
	return &AskHandler{
		retriever:  retriever,
		generator:  generator,
		sink:       sink,
		logOrphans: logOrphans,
	}
}

func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx := r.Context()
	tracer := audit.NewTracer(h.sink,
		audit.WithActor(GetActor(ctx)),
		audit.WithOrphanLogging(h.logOrphans),
	)
	p := pipeline.New(h.retriever, h.generator, pipeline.WithObserver(tracer))

	answer, err := p.Invoke(ctx, question)
	if err != nil {
		AddError(ctx, err)
		// An unrecordable run is a failed run; the caller sees it.
		writeError(w, http.StatusBadGateway, "pipeline failed")
		return
	}

	AddLogField(ctx, "trace_id", answer.TraceID)
	writeJSON(w, http.StatusOK, AskResponse{
		TraceID:    answer.TraceID,
		Answer:     answer.Text,
		Candidates: answer.Candidates,
	})
}

// RunsHandler serves the local audit mirror for inspection.
type RunsHandler struct {
	store storage.RecordStore
}

func NewRunsHandler(store storage.RecordStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// RunRecordsResponse is the body of GET /v1/runs/{traceID}.
type RunRecordsResponse struct {
	TraceID string         `json:"trace_id"`
	Records []audit.Record `json:"records"`
}

func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	if traceID == "" {
		writeError(w, http.StatusBadRequest, "trace id is required")
		return
	}

	stored, err := h.store.ListByTrace(r.Context(), traceID)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to read records")
		return
	}
	if len(stored) == 0 {
		writeError(w, http.StatusNotFound, "no records for trace")
		return
	}

	resp := RunRecordsResponse{TraceID: traceID, Records: make([]audit.Record, len(stored))}
	for i, rec := range stored {
		resp.Records[i] = rec.Record
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealthz reports liveness.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
