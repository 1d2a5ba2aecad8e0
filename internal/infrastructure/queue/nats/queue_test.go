package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func TestClassifyPublishError(t *testing.T) {
	if class := classifyPublishError(fmt.Errorf("nats publish: %w", nats.ErrTimeout)); !class.Retryable || !class.RecordFailure {
		t.Fatalf("timeout must be retryable, got %+v", class)
	}
	if class := classifyPublishError(nats.ErrConnectionReconnecting); !class.Retryable {
		t.Fatalf("reconnecting must be retryable, got %+v", class)
	}
	if class := classifyPublishError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not be retried, got %+v", class)
	}
	if class := classifyPublishError(nats.ErrMaxPayload); class.Retryable || class.RecordFailure {
		t.Fatalf("oversized payload must not be retried, got %+v", class)
	}
	if class := classifyPublishError(errors.New("permissions violation")); class.Retryable || !class.RecordFailure {
		t.Fatalf("unknown errors must not be retried, got %+v", class)
	}
}

func TestEncodeAuditEventRejectsIncompleteEvents(t *testing.T) {
	_, err := encodeAuditEvent(domain.AuditEvent{UserID: "u1", Action: "commit_record"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if class := classifyPublishError(err); class.Retryable {
		t.Fatalf("encode errors must not be retried")
	}

	payload, err := encodeAuditEvent(domain.AuditEvent{ID: "evt-1", Action: "commit_record", Outcome: "success"})
	if err != nil {
		t.Fatalf("encodeAuditEvent() error = %v", err)
	}
	event, err := decodeAuditEvent(payload)
	if err != nil || event.ID != "evt-1" {
		t.Fatalf("decodeAuditEvent() = %+v, %v", event, err)
	}
}

func TestPublishFailedKinds(t *testing.T) {
	event := domain.AuditEvent{ID: "evt-1", Action: "archive_file", UserID: "u1"}

	err := publishFailed(event, fmt.Errorf("nats publish: %w", nats.ErrNoServers))
	if !domain.IsKind(err, domain.ErrTemporary) || !strings.Contains(err.Error(), "archive_file") {
		t.Fatalf("expected temporary error naming the action, got %v", err)
	}
	plain := errors.New("permissions violation")
	err = publishFailed(event, plain)
	if domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, plain) {
		t.Fatalf("non-retryable error must keep its cause, got %v", err)
	}
}

func TestDecodeAuditEvent(t *testing.T) {
	event, err := decodeAuditEvent([]byte(`{"id":"evt-1","user_id":"u1","action":"commit_record","outcome":"success","occurred_at":"2025-06-01T09:00:00Z"}`))
	if err != nil {
		t.Fatalf("decodeAuditEvent() error = %v", err)
	}
	if event.ID != "evt-1" || event.Outcome != "success" || event.OccurredAt.Year() != 2025 {
		t.Fatalf("unexpected event %+v", event)
	}
	if _, err := decodeAuditEvent([]byte(`{"user_id":"u1"}`)); err == nil {
		t.Fatalf("expected error for event without id")
	}
	if _, err := decodeAuditEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
