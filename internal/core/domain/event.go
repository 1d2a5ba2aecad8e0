package domain

import "time"

// Event is an inbound transport event for one user.
type Event interface {
	isEvent()
}

type ImageReceived struct {
	File    UploadedFile
	Caption string
}

type FileReceived struct {
	File UploadedFile
}

type TextReceived struct {
	Text string
}

type ButtonPressed struct {
	Token string
}

type CommandReceived struct {
	Name string
	Args string
}

func (ImageReceived) isEvent()   {}
func (FileReceived) isEvent()    {}
func (TextReceived) isEvent()    {}
func (ButtonPressed) isEvent()   {}
func (CommandReceived) isEvent() {}

// EventName is used for logs and metric labels.
func EventName(ev Event) string {
	switch ev.(type) {
	case ImageReceived:
		return "image"
	case FileReceived:
		return "file"
	case TextReceived:
		return "text"
	case ButtonPressed:
		return "button"
	case CommandReceived:
		return "command"
	default:
		return "unknown"
	}
}

type Button struct {
	Label string
	Token string
}

// Message is an outbound reply. Buttons are laid out as rows.
type Message struct {
	Text    string
	Buttons [][]Button
	// ReplaceRef, when set, asks the transport to edit that earlier
	// message instead of sending a new one.
	ReplaceRef string
}

type AuditEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	BranchCode string    `json:"branch_code"`
	Kind       string    `json:"kind,omitempty"`
	PrimaryID  string    `json:"primary_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AuditStats struct {
	Total      int64
	ByOutcome  map[string]int64
	LastRecord time.Time
}
