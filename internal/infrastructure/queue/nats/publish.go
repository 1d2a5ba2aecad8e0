package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

// encodeAuditEvent rejects events the worker would drop on decode.
func encodeAuditEvent(event domain.AuditEvent) ([]byte, error) {
	if event.ID == "" || event.Action == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode audit event", errors.New("id and action are required"))
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode audit event", err)
	}
	return payload, nil
}

// classifyPublishError retries only connection trouble. A payload the
// server refuses will be refused again.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrInvalidInput),
		errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffExponential}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishFailed logs which audit event was lost and gives the error its
// domain kind. Connection trouble and an open breaker are temporary.
func publishFailed(event domain.AuditEvent, err error) error {
	slog.Error("audit_event_publish_failed",
		"event_id", event.ID,
		"action", event.Action,
		"outcome", event.Outcome,
		"user_id", event.UserID,
		"error", err,
	)
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if classifyPublishError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "publish audit event "+event.Action, err)
	}
	return fmt.Errorf("publish audit event %s: %w", event.Action, err)
}
