package ports

import (
	"context"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// ConversationHandler is the inbound contract for chat transports.
type ConversationHandler interface {
	Handle(ctx context.Context, userID string, event domain.Event) error
	// Interrupt is called by transports as soon as a cancel arrives so
	// that in-flight work for the user is discarded.
	Interrupt(userID string)
}

// DocumentExtractor turns an image into a validated record.
type DocumentExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*domain.Record, error)
}

// SessionStatsReader is the read model behind the ops stats endpoint.
type SessionStatsReader interface {
	SessionStats(ctx context.Context) (domain.SessionStats, error)
}
