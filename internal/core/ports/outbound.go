package ports

import (
	"context"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// Recognizer sends a document image to an extraction model and returns the
// decoded JSON object it answered with.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte, mimeType string) (map[string]any, error)
}

// RecordStore is the spreadsheet-like table the records end up in.
type RecordStore interface {
	AppendRow(ctx context.Context, sheet string, row []string) error
	// FindRows reports whether any of tokens appears in any of columns.
	FindRows(ctx context.Context, sheet string, columns []string, tokens []string) (bool, error)
}

// FileStore archives the original uploads next to the records.
type FileStore interface {
	FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error)
	UploadFile(ctx context.Context, folderID, name string, data []byte, mimeType string) (string, error)
}

// Messenger delivers outbound messages to a user and returns a reference
// that can later be passed back as Message.ReplaceRef.
type Messenger interface {
	Send(ctx context.Context, userID string, msg domain.Message) (string, error)
}

// FileInspector checks uploaded PDFs before they enter a workflow.
type FileInspector interface {
	PageCount(ctx context.Context, data []byte) (int, error)
}

// AuditSink receives append-only audit events.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// AuditReader exposes aggregated audit data for operators.
type AuditReader interface {
	Stats(ctx context.Context) (domain.AuditStats, error)
}

// AuditQueue moves audit events between the bot and the audit worker.
type AuditQueue interface {
	PublishAuditEvent(ctx context.Context, event domain.AuditEvent) error
	SubscribeAuditEvents(ctx context.Context, handler func(context.Context, domain.AuditEvent) error) error
}

// SessionStore keeps per-user conversation state in memory.
type SessionStore interface {
	// Acquire waits for the user's lock. The returned release must be
	// called exactly once.
	Acquire(ctx context.Context, userID string) (domain.SessionLease, func(), error)
	// Save and Clear must only be called while holding the user's lock.
	Save(userID string, session *domain.Session) error
	Clear(userID string)
	// Interrupt invalidates in-flight work for the user without locking.
	Interrupt(userID string)
	Generation(userID string) uint64
	Stats() domain.SessionStats
}

// IntakeMetrics is implemented by the prometheus collectors.
type IntakeMetrics interface {
	ObserveEvent(event, state string)
	ObserveExtraction(provider, outcome string, seconds float64)
	ObserveCommit(outcome string)
	ObserveError(kind string)
}
