package domain

import (
	"fmt"
	"time"
)

type State string

const (
	StateIdle                          State = "idle"
	StateAwaitingBranch                State = "awaiting_branch"
	StateAwaitingKindDisambiguation    State = "awaiting_npwp_type"
	StateAwaitingFileName              State = "awaiting_pdf_name"
	StateAwaitingConfirmation          State = "awaiting_confirmation"
	StateSelectingEditField            State = "selecting_edit_field"
	StateAwaitingEditInput             State = "awaiting_edit_input"
	StateAwaitingBranchEdit            State = "awaiting_branch_edit"
	StateAwaitingDuplicateConfirmation State = "awaiting_duplicate_confirmation"
	StateSaving                        State = "saving"
)

type Workflow string

const (
	WorkflowNone        Workflow = ""
	WorkflowImageIntake Workflow = "photo"
	WorkflowFileIntake  Workflow = "pdf"
)

// transitions is the complete set of legal moves. Transitions to Idle are
// legal from every state and are not listed.
var transitions = map[State][]State{
	StateIdle:                          {StateAwaitingBranch},
	StateAwaitingBranch:                {StateAwaitingKindDisambiguation, StateAwaitingConfirmation, StateAwaitingFileName},
	StateAwaitingKindDisambiguation:    {StateAwaitingConfirmation},
	StateAwaitingFileName:              {StateSaving},
	StateAwaitingConfirmation:          {StateSelectingEditField, StateSaving},
	StateSelectingEditField:            {StateAwaitingEditInput, StateAwaitingBranchEdit, StateAwaitingConfirmation},
	StateAwaitingEditInput:             {StateAwaitingConfirmation},
	StateAwaitingBranchEdit:            {StateAwaitingConfirmation},
	StateSaving:                        {StateAwaitingDuplicateConfirmation},
	StateAwaitingDuplicateConfirmation: {StateSaving},
}

func CanTransition(from, to State) bool {
	if to == StateIdle {
		_, known := transitions[from]
		return known
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type UploadedFile struct {
	Data     []byte
	Name     string
	MIMEType string
}

func (f UploadedFile) Size() int { return len(f.Data) }

// Session is the per-user conversation state. It is only mutated while
// the owning user's lock in the session store is held.
type Session struct {
	ID               string
	UserID           string
	State            State
	Workflow         Workflow
	Record           *Record
	File             UploadedFile
	FileName         string
	BranchCode       string
	StoreNameHint    string
	PendingEditField Field
	LastPromptRef    string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	Interactions     int
	Errors           int
}

func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		State:          StateIdle,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Transition moves the session to next or reports ErrIllegalTransition.
func (s *Session) Transition(next State) error {
	if !CanTransition(s.State, next) {
		return WrapError(ErrIllegalTransition, "session transition", fmt.Errorf("%s -> %s", s.State, next))
	}
	s.State = next
	if next == StateIdle {
		s.PendingEditField = ""
	}
	return nil
}

// Touch records activity; the timestamp never moves backwards.
func (s *Session) Touch(now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
	s.Interactions++
}

func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivityAt) > timeout
}

func (s *Session) Active() bool {
	return s.State != StateIdle
}

// SessionLease is what a locked session lookup yields.
type SessionLease struct {
	// Session is nil when the user has no live session.
	Session *Session
	// Expired is set when a timed out session was dropped by this lookup.
	Expired    bool
	Generation uint64
}

type SessionStats struct {
	Active   int            `json:"active"`
	Capacity int            `json:"capacity"`
	ByState  map[string]int `json:"by_state"`
	Created  int64          `json:"created_total"`
	Expired  int64          `json:"expired_total"`
	// Errors sums the re-prompts of live sessions.
	Errors int `json:"errors"`
}
