package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

type statsReaderFake struct {
	stats domain.SessionStats
	err   error
}

func (f statsReaderFake) SessionStats(context.Context) (domain.SessionStats, error) {
	return f.stats, f.err
}

type auditReaderFake struct {
	stats domain.AuditStats
	err   error
}

func (f auditReaderFake) Stats(context.Context) (domain.AuditStats, error) {
	return f.stats, f.err
}

func TestHealthzSetsRequestID(t *testing.T) {
	handler := NewRouter(statsReaderFake{}, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) != "req-1" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get(requestIDHeader))
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	handler := NewRouter(statsReaderFake{}, nil, nil).Handler()

	for _, id := range []string{"bad id\ninjected", strings.Repeat("x", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, id)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		if got == id || got == "" {
			t.Fatalf("unsafe request id %q was kept as %q", id, got)
		}
	}
}

type panickingStats struct{}

func (panickingStats) SessionStats(context.Context) (domain.SessionStats, error) {
	panic("stats broken")
}

func TestHandlerPanicBecomes500(t *testing.T) {
	handler := NewRouter(panickingStats{}, nil, nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/stats", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id missing on recovered response")
	}
}

func TestSessionStatsIncludesAuditTotals(t *testing.T) {
	handler := NewRouter(
		statsReaderFake{stats: domain.SessionStats{Active: 2, Capacity: 100, ByState: map[string]int{"awaiting_branch": 2}, Created: 5}},
		auditReaderFake{stats: domain.AuditStats{Total: 7, ByOutcome: map[string]int64{"success": 6, "duplicate_found": 1}}},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) }),
	).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["active"] != float64(2) || body["audit_total"] != float64(7) {
		t.Fatalf("unexpected body %v", body)
	}
	byState := body["by_state"].(map[string]any)
	if byState["awaiting_branch"] != float64(2) {
		t.Fatalf("unexpected by_state %v", byState)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Body.String() != "metrics" {
		t.Fatalf("metrics handler not mounted: %q", rec.Body.String())
	}
}

func TestSessionStatsSkipsFailingAuditReader(t *testing.T) {
	handler := NewRouter(statsReaderFake{}, auditReaderFake{err: errors.New("db down")}, nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if _, ok := body["audit_total"]; ok {
		t.Fatalf("audit_total must be omitted when the reader fails: %v", body)
	}
}

func TestSessionStatsErrors(t *testing.T) {
	handler := NewRouter(statsReaderFake{err: domain.WrapError(domain.ErrTemporary, "stats", errors.New("busy"))}, nil, nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/stats", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := map[error]int{
		domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")): http.StatusBadRequest,
		domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")): http.StatusUnauthorized,
		domain.WrapError(domain.ErrStorage, "op", errors.New("x")):      http.StatusServiceUnavailable,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := mapErrorToHTTPStatus(err); got != want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
