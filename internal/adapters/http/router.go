package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
)

// Router serves the operator endpoints next to the bot.
type Router struct {
	stats   ports.SessionStatsReader
	audit   ports.AuditReader
	metrics http.Handler
}

// NewRouter wires the ops endpoints. audit and metrics may be nil.
func NewRouter(stats ports.SessionStatsReader, audit ports.AuditReader, metrics http.Handler) *Router {
	return &Router{stats: stats, audit: audit, metrics: metrics}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions/stats", rt.sessionStats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}
	return requestIDMiddleware(accessLogMiddleware(recoverMiddleware(mux)))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionStatsResponse struct {
	domain.SessionStats
	AuditTotal     *int64           `json:"audit_total,omitempty"`
	AuditByOutcome map[string]int64 `json:"audit_by_outcome,omitempty"`
}

func (rt *Router) sessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.stats.SessionStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := sessionStatsResponse{SessionStats: stats}

	if rt.audit != nil {
		auditStats, err := rt.audit.Stats(r.Context())
		if err != nil {
			slog.Warn("audit_stats_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		} else {
			total := auditStats.Total
			resp.AuditTotal = &total
			resp.AuditByOutcome = auditStats.ByOutcome
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	slog.Error("ops_request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops_server_listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
