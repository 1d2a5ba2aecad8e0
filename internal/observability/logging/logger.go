package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return newJSONLogger(os.Stdout, service, level)
}

func newJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// WithUser scopes a logger to one conversation.
func WithUser(logger *slog.Logger, userID, sessionID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if sessionID == "" {
		return logger.With("user_id", userID)
	}
	return logger.With("user_id", userID, "session_id", sessionID)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuditLog writes audit events to the structured log. It is the fallback
// sink when neither NATS nor Postgres is configured.
type AuditLog struct {
	logger *slog.Logger
}

func NewAuditLog(logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{logger: logger}
}

func (a *AuditLog) Record(ctx context.Context, event domain.AuditEvent) error {
	a.logger.InfoContext(ctx, "audit_event",
		"event_id", event.ID,
		"user_id", event.UserID,
		"session_id", event.SessionID,
		"action", event.Action,
		"outcome", event.Outcome,
		"branch", event.BranchCode,
		"kind", event.Kind,
		"primary_id", event.PrimaryID,
		"detail", event.Detail,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
