package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trailsec/ragtrail/internal/audit"
	"github.com/trailsec/ragtrail/internal/pipeline"
	"github.com/trailsec/ragtrail/internal/storage"
	"github.com/trailsec/ragtrail/internal/storage/memory"
)

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string) ([]pipeline.Document, error) {
	return []pipeline.Document{{ID: "d1", Text: "Our drink menu features a ginger spritz.", Score: 0.9}}, nil
}

func (stubRetriever) Params() map[string]any { return map[string]any{"k": 1} }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (*pipeline.Generation, error) {
	return &pipeline.Generation{Texts: []string{"Try the ginger spritz."}, Model: "stub"}, nil
}

func (stubGenerator) Params() map[string]any { return map[string]any{"model": "stub"} }

type failingSink struct{ err error }

func (s failingSink) Submit(ctx context.Context, records []audit.Record) error { return s.err }

type collectingSink struct{ records []audit.Record }

func (s *collectingSink) Submit(ctx context.Context, records []audit.Record) error {
	s.records = append(s.records, records...)
	return nil
}

func newAskRouter(sink audit.Sink) *chi.Mux {
	r := chi.NewRouter()
	r.Use(ActorMiddleware)
	h := NewAskHandler(stubRetriever{}, stubGenerator{}, sink, false)
	r.Post("/v1/ask", h.HandleAsk)
	return r
}

func TestAskHandler_AnswersAndAudits(t *testing.T) {
	sink := &collectingSink{}
	router := newAskRouter(sink)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"drink recommendation"}`))
	req.Header.Set("X-Actor", "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Try the ginger spritz." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.TraceID == "" {
		t.Error("response has no trace id")
	}

	if len(sink.records) != 4 {
		t.Fatalf("audit records = %d, want 4", len(sink.records))
	}
	for i, r := range sink.records {
		if r.TraceID != resp.TraceID {
			t.Errorf("record %d trace id = %q, want %q", i, r.TraceID, resp.TraceID)
		}
		if r.Actor != "alice" {
			t.Errorf("record %d actor = %q, want alice", i, r.Actor)
		}
	}
}

func TestAskHandler_EmptyQuestion(t *testing.T) {
	router := newAskRouter(&collectingSink{})

	for _, body := range []string{`{}`, `{"question":"   \n\t "}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestAskHandler_SinkFailureFailsRequest(t *testing.T) {
	router := newAskRouter(failingSink{err: errors.New("audit service down")})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"anything"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when audit trail cannot be written", rec.Code)
	}
}

func TestRunsHandler_GetRun(t *testing.T) {
	store := memory.New()
	store.SaveRecord(context.Background(), &storage.StoredRecord{
		ID:      "rec-1",
		TraceID: "trace-1",
		Type:    audit.TypeRetrieverStart,
		Record:  audit.Record{TraceID: "trace-1", Type: audit.TypeRetrieverStart, Input: `{"query":"q"}`},
	})

	r := chi.NewRouter()
	r.Get("/v1/runs/{traceID}", NewRunsHandler(store).HandleGetRun)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/trace-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp RunRecordsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Type != audit.TypeRetrieverStart {
		t.Errorf("records = %+v", resp.Records)
	}
}

func TestRunsHandler_UnknownTrace(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/runs/{traceID}", NewRunsHandler(memory.New()).HandleGetRun)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
