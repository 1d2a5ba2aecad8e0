package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/validation"
)

// Button tokens. They are opaque to transports and round-trip through
// ButtonPressed events.
const (
	tokenBranchPrefix     = "branch_"
	tokenNPWPTypeCompany  = "npwptype_company"
	tokenNPWPTypePersonal = "npwptype_personal"
	tokenConfirmSave      = "confirm_save"
	tokenConfirmEdit      = "confirm_edit"
	tokenEditPrefix       = "edit_"
	tokenEditLocation     = "edit_location"
	tokenCancelEdit       = "cancel_edit"
	tokenCancelOp         = "cancel_op"
	tokenForceSave        = "force_save"
)

const (
	reasonUnsupported     = "unsupported type"
	reasonImageTooLarge   = "image too large"
	reasonPDFTooLarge     = "pdf too large"
	reasonUnreadablePDF   = "unreadable pdf"
	mimePDF               = "application/pdf"
	decisionForceSave     = "force_save"
	decisionCancelledSave = "cancelled"
)

type ConversationConfig struct {
	MaxImageBytes int
	MaxPDFBytes   int
	AdminUserIDs  []string
}

// ConversationUseCase drives the per-user intake state machine. Every
// event for a user runs while that user's session lock is held.
type ConversationUseCase struct {
	sessions    ports.SessionStore
	extractor   ports.DocumentExtractor
	committer   *CommitRecordUseCase
	messenger   ports.Messenger
	branches    *domain.BranchMap
	inspector   ports.FileInspector
	auditReader ports.AuditReader
	metrics     ports.IntakeMetrics
	cfg         ConversationConfig
	now         func() time.Time
}

func NewConversationUseCase(
	sessions ports.SessionStore,
	extractor ports.DocumentExtractor,
	committer *CommitRecordUseCase,
	messenger ports.Messenger,
	branches *domain.BranchMap,
	inspector ports.FileInspector,
	auditReader ports.AuditReader,
	metrics ports.IntakeMetrics,
	cfg ConversationConfig,
) *ConversationUseCase {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 20 << 20
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = 50 << 20
	}
	return &ConversationUseCase{
		sessions:    sessions,
		extractor:   extractor,
		committer:   committer,
		messenger:   messenger,
		branches:    branches,
		inspector:   inspector,
		auditReader: auditReader,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// turn is the state of a single Handle call.
type turn struct {
	userID     string
	sess       *domain.Session
	expired    bool
	generation uint64
}

func (t *turn) sessionID() string {
	if t.sess == nil {
		return ""
	}
	return t.sess.ID
}

func (t *turn) state() domain.State {
	if t.sess == nil {
		return domain.StateIdle
	}
	return t.sess.State
}

// Handle processes one event. Failures are reported to the user and
// logged here; only a failure to obtain the session lock is returned.
func (uc *ConversationUseCase) Handle(ctx context.Context, userID string, event domain.Event) error {
	lease, release, err := uc.sessions.Acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	t := &turn{userID: userID, sess: lease.Session, expired: lease.Expired, generation: lease.Generation}
	if t.sess != nil {
		t.sess.Touch(uc.now())
	}
	if uc.metrics != nil {
		uc.metrics.ObserveEvent(domain.EventName(event), string(t.state()))
	}

	if err := uc.dispatch(ctx, t, event); err != nil {
		uc.fail(ctx, t, err)
		return nil
	}
	if t.sess != nil {
		if err := uc.sessions.Save(userID, t.sess); err != nil {
			slog.Warn("session_save_failed", "user_id", userID, "session_id", t.sess.ID, "error", err)
		}
	}
	return nil
}

// Interrupt marks in-flight work for the user as stale. The queued cancel
// event does the actual cleanup once it gets the lock.
func (uc *ConversationUseCase) Interrupt(userID string) {
	uc.sessions.Interrupt(userID)
	slog.Debug("conversation_interrupted", "user_id", userID)
}

func (uc *ConversationUseCase) SessionStats(context.Context) (domain.SessionStats, error) {
	return uc.sessions.Stats(), nil
}

func (uc *ConversationUseCase) dispatch(ctx context.Context, t *turn, event domain.Event) error {
	switch ev := event.(type) {
	case domain.CommandReceived:
		return uc.onCommand(ctx, t, ev)
	case domain.ImageReceived:
		return uc.startImageIntake(ctx, t, ev.File, ev.Caption)
	case domain.FileReceived:
		if isImageFile(ev.File) {
			return uc.startImageIntake(ctx, t, ev.File, "")
		}
		return uc.startFileIntake(ctx, t, ev.File)
	case domain.TextReceived:
		return uc.onText(ctx, t, ev.Text)
	case domain.ButtonPressed:
		return uc.onButton(ctx, t, ev.Token)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

func (uc *ConversationUseCase) onCommand(ctx context.Context, t *turn, cmd domain.CommandReceived) error {
	switch strings.ToLower(cmd.Name) {
	case "start":
		uc.clear(t)
		uc.send(ctx, t, domain.Message{Text: msgWelcome})
	case "help":
		uc.send(ctx, t, domain.Message{Text: msgHelp})
	case "status":
		uc.send(ctx, t, domain.Message{Text: statusText(t.sess)})
	case "cancel":
		return uc.cancel(ctx, t, false)
	case "admin_stats":
		if !slices.Contains(uc.cfg.AdminUserIDs, t.userID) {
			uc.send(ctx, t, domain.Message{Text: msgAdminOnly})
			return nil
		}
		var audit *domain.AuditStats
		if uc.auditReader != nil {
			stats, err := uc.auditReader.Stats(ctx)
			if err != nil {
				slog.Warn("audit_stats_failed", "user_id", t.userID, "error", err)
			} else {
				audit = &stats
			}
		}
		uc.send(ctx, t, domain.Message{Text: adminStatsText(uc.sessions.Stats(), audit)})
	default:
		uc.send(ctx, t, domain.Message{Text: msgUnknownCommand})
	}
	return nil
}

func (uc *ConversationUseCase) startImageIntake(ctx context.Context, t *turn, file domain.UploadedFile, caption string) error {
	if file.MIMEType == "" {
		file.MIMEType = http.DetectContentType(file.Data)
	}
	if !isImageFile(file) {
		return &domain.InvalidFileError{Reason: reasonUnsupported}
	}
	if file.Size() > uc.cfg.MaxImageBytes {
		return &domain.InvalidFileError{Reason: reasonImageTooLarge}
	}

	sess, err := uc.begin(t, domain.WorkflowImageIntake)
	if err != nil {
		return err
	}
	sess.File = file
	sess.StoreNameHint = strings.TrimSpace(caption)
	uc.prompt(ctx, t, domain.Message{Text: photoReceivedText(sess.StoreNameHint), Buttons: branchKeyboard(uc.branches)}, false)
	return nil
}

func (uc *ConversationUseCase) startFileIntake(ctx context.Context, t *turn, file domain.UploadedFile) error {
	if !strings.EqualFold(file.MIMEType, mimePDF) && !strings.EqualFold(filepath.Ext(file.Name), ".pdf") {
		return &domain.InvalidFileError{Reason: reasonUnsupported}
	}
	if file.Size() > uc.cfg.MaxPDFBytes {
		return &domain.InvalidFileError{Reason: reasonPDFTooLarge}
	}
	pages, err := uc.inspector.PageCount(ctx, file.Data)
	if err != nil {
		slog.Info("pdf_rejected", "user_id", t.userID, "file_name", file.Name, "error", err)
		return &domain.InvalidFileError{Reason: reasonUnreadablePDF}
	}
	file.MIMEType = mimePDF

	sess, err := uc.begin(t, domain.WorkflowFileIntake)
	if err != nil {
		return err
	}
	sess.File = file
	uc.prompt(ctx, t, domain.Message{Text: pdfReceivedText(file, pages), Buttons: branchKeyboard(uc.branches)}, false)
	return nil
}

// begin replaces any existing session with a fresh one awaiting a branch.
func (uc *ConversationUseCase) begin(t *turn, workflow domain.Workflow) (*domain.Session, error) {
	if t.sess != nil {
		slog.Info("session_replaced", "user_id", t.userID, "session_id", t.sess.ID, "state", t.sess.State)
	}
	sess := domain.NewSession(uuid.NewString(), t.userID, uc.now())
	sess.Workflow = workflow
	sess.Touch(uc.now())
	if err := sess.Transition(domain.StateAwaitingBranch); err != nil {
		return nil, err
	}
	if err := uc.sessions.Save(t.userID, sess); err != nil {
		t.sess = nil
		return nil, err
	}
	t.sess = sess
	slog.Info("session_started", "user_id", t.userID, "session_id", sess.ID, "workflow", workflow)
	return sess, nil
}

func (uc *ConversationUseCase) onText(ctx context.Context, t *turn, text string) error {
	if t.sess == nil {
		uc.sendIdleNotice(ctx, t, msgGuidance)
		return nil
	}
	switch t.sess.State {
	case domain.StateAwaitingEditInput:
		return uc.applyEdit(ctx, t, text)
	case domain.StateAwaitingFileName:
		return uc.archive(ctx, t, text)
	default:
		uc.send(ctx, t, domain.Message{Text: msgUseButtons})
		return nil
	}
}

func (uc *ConversationUseCase) onButton(ctx context.Context, t *turn, token string) error {
	if token == tokenCancelOp {
		return uc.cancel(ctx, t, true)
	}
	if t.sess == nil {
		uc.sendIdleNotice(ctx, t, msgStaleButton)
		return nil
	}

	sess := t.sess
	switch sess.State {
	case domain.StateAwaitingBranch:
		if code, ok := strings.CutPrefix(token, tokenBranchPrefix); ok {
			return uc.selectBranch(ctx, t, code)
		}
	case domain.StateAwaitingKindDisambiguation:
		switch token {
		case tokenNPWPTypeCompany:
			return uc.setEntityType(ctx, t, domain.TaxEntityCompany)
		case tokenNPWPTypePersonal:
			return uc.setEntityType(ctx, t, domain.TaxEntityIndividual)
		}
	case domain.StateAwaitingConfirmation:
		switch token {
		case tokenConfirmSave:
			return uc.save(ctx, t, false)
		case tokenConfirmEdit:
			if err := sess.Transition(domain.StateSelectingEditField); err != nil {
				return err
			}
			uc.prompt(ctx, t, domain.Message{Text: msgSelectEditField, Buttons: editKeyboard(sess.Record)}, true)
			return nil
		}
	case domain.StateSelectingEditField:
		return uc.selectEditField(ctx, t, token)
	case domain.StateAwaitingBranchEdit:
		if token == tokenCancelEdit {
			return uc.showPreview(ctx, t, true)
		}
		if code, ok := strings.CutPrefix(token, tokenBranchPrefix); ok {
			return uc.changeBranch(ctx, t, code)
		}
	case domain.StateAwaitingDuplicateConfirmation:
		if token == tokenForceSave {
			return uc.save(ctx, t, true)
		}
	}

	slog.Debug("stale_button", "user_id", t.userID, "session_id", sess.ID, "state", sess.State, "token", token)
	uc.send(ctx, t, domain.Message{Text: msgStaleButton})
	return nil
}

func (uc *ConversationUseCase) selectBranch(ctx context.Context, t *turn, code string) error {
	sess := t.sess
	if _, ok := uc.branches.Lookup(code); !ok {
		uc.send(ctx, t, domain.Message{Text: msgInvalidBranch})
		return nil
	}
	sess.BranchCode = code

	if sess.Workflow == domain.WorkflowFileIntake {
		if err := sess.Transition(domain.StateAwaitingFileName); err != nil {
			return err
		}
		uc.prompt(ctx, t, domain.Message{Text: fmt.Sprintf("📍 Cabang %s dipilih.\n\n%s", code, msgAskFileName)}, true)
		return nil
	}

	uc.prompt(ctx, t, domain.Message{Text: fmt.Sprintf("📍 Cabang %s dipilih.\n\n%s", code, msgProcessing)}, true)
	rec, err := uc.extractor.Extract(ctx, sess.File.Data, sess.File.MIMEType)
	if uc.interrupted(t, "extract") {
		return nil
	}
	if err != nil {
		return err
	}
	sess.Record = rec

	if rec.Kind() == domain.KindTaxID {
		if err := sess.Transition(domain.StateAwaitingKindDisambiguation); err != nil {
			return err
		}
		uc.prompt(ctx, t, domain.Message{
			Text:    msgSelectNPWPType,
			Buttons: [][]domain.Button{{btnCompany}, {btnPersonal}, {btnCancel}},
		}, false)
		return nil
	}
	return uc.showPreview(ctx, t, false)
}

func (uc *ConversationUseCase) setEntityType(ctx context.Context, t *turn, entity domain.TaxEntityType) error {
	t.sess.Record.SetEntityType(entity)
	return uc.showPreview(ctx, t, true)
}

func (uc *ConversationUseCase) selectEditField(ctx context.Context, t *turn, token string) error {
	sess := t.sess
	switch token {
	case tokenEditLocation:
		if err := sess.Transition(domain.StateAwaitingBranchEdit); err != nil {
			return err
		}
		uc.prompt(ctx, t, domain.Message{Text: msgSelectNewLocation, Buttons: branchKeyboard(uc.branches, btnBackPreview, btnCancel)}, true)
		return nil
	case tokenCancelEdit:
		return uc.showPreview(ctx, t, true)
	}

	raw, ok := strings.CutPrefix(token, tokenEditPrefix)
	field, known := domain.ParseField(raw)
	if !ok || !known || !slices.Contains(sess.Record.ApplicableFields(), field) {
		uc.send(ctx, t, domain.Message{Text: msgStaleButton})
		return nil
	}
	if err := sess.Transition(domain.StateAwaitingEditInput); err != nil {
		return err
	}
	sess.PendingEditField = field
	uc.prompt(ctx, t, domain.Message{Text: editPromptText(field)}, true)
	return nil
}

func (uc *ConversationUseCase) applyEdit(ctx context.Context, t *turn, text string) error {
	sess := t.sess
	field := sess.PendingEditField
	value, err := validation.ValidateField(field, text)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			sess.Errors++
			uc.send(ctx, t, domain.Message{Text: invalidValueText(err, field)})
			return nil
		}
		return err
	}
	if err := sess.Record.SetField(field, value); err != nil {
		return err
	}
	sess.Record.Warnings = validation.ValidateRecord(sess.Record)
	sess.PendingEditField = ""
	slog.Info("record_field_edited", "user_id", t.userID, "session_id", sess.ID, "field", field)
	return uc.showPreview(ctx, t, false)
}

func (uc *ConversationUseCase) changeBranch(ctx context.Context, t *turn, code string) error {
	if _, ok := uc.branches.Lookup(code); !ok {
		uc.send(ctx, t, domain.Message{Text: msgInvalidBranch})
		return nil
	}
	t.sess.BranchCode = code
	return uc.showPreview(ctx, t, true)
}

// showPreview moves to AwaitingConfirmation and renders the record as it
// is now.
func (uc *ConversationUseCase) showPreview(ctx context.Context, t *turn, replace bool) error {
	sess := t.sess
	if err := sess.Transition(domain.StateAwaitingConfirmation); err != nil {
		return err
	}
	branch, err := uc.branch(sess)
	if err != nil {
		return err
	}
	uc.prompt(ctx, t, domain.Message{
		Text:    previewText(sess.Record, branch, sess.StoreNameHint),
		Buttons: confirmationKeyboard(),
	}, replace)
	return nil
}

func (uc *ConversationUseCase) save(ctx context.Context, t *turn, bypassDuplicate bool) error {
	sess := t.sess
	branch, err := uc.branch(sess)
	if err != nil {
		return err
	}
	if err := sess.Transition(domain.StateSaving); err != nil {
		return err
	}
	if bypassDuplicate {
		uc.committer.RecordDecision(ctx, t.userID, sess.ID, branch.Code, sess.Record, decisionForceSave)
	}
	uc.prompt(ctx, t, domain.Message{Text: msgSaving}, true)

	result, err := uc.committer.Commit(ctx, CommitRequest{
		UserID:    t.userID,
		SessionID: sess.ID,
		Record:    sess.Record,
		Branch:    branch,
		StoreName: sess.StoreNameHint,
		File:      sess.File,
	}, bypassDuplicate)
	if uc.interrupted(t, "commit") {
		return nil
	}
	if err != nil {
		return err
	}

	if result.Outcome == CommitDuplicateFound {
		if err := sess.Transition(domain.StateAwaitingDuplicateConfirmation); err != nil {
			return err
		}
		uc.prompt(ctx, t, domain.Message{Text: msgDuplicate, Buttons: [][]domain.Button{{btnForceSave, btnCancel}}}, true)
		return nil
	}

	rec := sess.Record
	uc.clear(t)
	uc.send(ctx, t, domain.Message{Text: successText(rec, branch, sess.StoreNameHint)})
	return nil
}

func (uc *ConversationUseCase) archive(ctx context.Context, t *turn, text string) error {
	sess := t.sess
	name, err := ValidateArchiveName(text)
	if err != nil {
		sess.Errors++
		uc.send(ctx, t, domain.Message{Text: "❌ " + validationText(err) + "\n\n" + msgAskFileName})
		return nil
	}
	branch, err := uc.branch(sess)
	if err != nil {
		return err
	}
	if err := sess.Transition(domain.StateSaving); err != nil {
		return err
	}
	sess.FileName = name
	uc.send(ctx, t, domain.Message{Text: msgSaving})

	result, err := uc.committer.ArchiveFile(ctx, ArchiveRequest{
		UserID:    t.userID,
		SessionID: sess.ID,
		Branch:    branch,
		File:      sess.File,
		FileName:  name,
	})
	if uc.interrupted(t, "archive") {
		return nil
	}
	if err != nil {
		return err
	}
	uc.clear(t)
	uc.send(ctx, t, domain.Message{Text: archivedText(branch, result.FileName)})
	return nil
}

func (uc *ConversationUseCase) cancel(ctx context.Context, t *turn, fromButton bool) error {
	if t.sess == nil {
		uc.sendIdleNotice(ctx, t, msgNothingToCancel)
		return nil
	}
	sess := t.sess
	if sess.State == domain.StateAwaitingDuplicateConfirmation {
		uc.committer.RecordDecision(ctx, t.userID, sess.ID, sess.BranchCode, sess.Record, decisionCancelledSave)
	}
	slog.Info("session_cancelled", "user_id", t.userID, "session_id", sess.ID, "state", sess.State)
	msg := domain.Message{Text: msgCancelled}
	if fromButton {
		msg.ReplaceRef = sess.LastPromptRef
	}
	uc.clear(t)
	uc.send(ctx, t, msg)
	return nil
}

func (uc *ConversationUseCase) branch(sess *domain.Session) (domain.Branch, error) {
	branch, ok := uc.branches.Lookup(sess.BranchCode)
	if !ok {
		return domain.Branch{}, domain.WrapError(domain.ErrInvalidInput, "lookup branch", fmt.Errorf("unknown branch %q", sess.BranchCode))
	}
	return branch, nil
}

// interrupted reports whether a cancel arrived while an external call was
// in flight. The result of that call must then be dropped.
func (uc *ConversationUseCase) interrupted(t *turn, op string) bool {
	if uc.sessions.Generation(t.userID) == t.generation {
		return false
	}
	slog.Info("result_discarded", "user_id", t.userID, "session_id", t.sessionID(), "op", op)
	return true
}

func (uc *ConversationUseCase) clear(t *turn) {
	uc.sessions.Clear(t.userID)
	if t.sess != nil {
		t.sess.State = domain.StateIdle
	}
	t.sess = nil
}

// sendIdleNotice tells a user without a session what to do next; a session
// that just timed out gets the expiry notice instead.
func (uc *ConversationUseCase) sendIdleNotice(ctx context.Context, t *turn, text string) {
	if t.expired {
		text = msgSessionExpired
	}
	uc.send(ctx, t, domain.Message{Text: text})
}

// prompt sends msg and remembers it as the message the next button press
// answers. With replace set, the previous prompt is edited in place.
func (uc *ConversationUseCase) prompt(ctx context.Context, t *turn, msg domain.Message, replace bool) {
	var last string
	if t.sess != nil {
		last = t.sess.LastPromptRef
	}
	if replace {
		msg.ReplaceRef = last
	}
	ref := uc.send(ctx, t, msg)
	if t.sess != nil && ref != "" {
		t.sess.LastPromptRef = ref
	}
}

// send never fails the turn; delivery is best effort.
func (uc *ConversationUseCase) send(ctx context.Context, t *turn, msg domain.Message) string {
	ref, err := uc.messenger.Send(ctx, t.userID, msg)
	if err != nil {
		slog.Warn("message_send_failed", "user_id", t.userID, "session_id", t.sessionID(), "error", err)
		return ""
	}
	return ref
}

// fail is the single error boundary of a turn: the user gets one message
// and the session is dropped.
func (uc *ConversationUseCase) fail(ctx context.Context, t *turn, err error) {
	kind := errorKind(err)
	attrs := []any{
		"user_id", t.userID,
		"session_id", t.sessionID(),
		"state", t.state(),
		"kind", kind,
		"error", err,
	}
	if t.sess != nil {
		t.sess.Errors++
		attrs = append(attrs, "session_errors", t.sess.Errors)
	}
	switch kind {
	case "invalid_file", "capacity":
		slog.Warn("conversation_rejected", attrs...)
	default:
		slog.Error("conversation_failed", attrs...)
	}
	if uc.metrics != nil {
		uc.metrics.ObserveError(kind)
	}
	uc.clear(t)
	uc.send(ctx, t, domain.Message{Text: uc.messageFor(err)})
}

func (uc *ConversationUseCase) messageFor(err error) string {
	var fileErr *domain.InvalidFileError
	var storageErr *domain.StorageError
	switch {
	case errors.As(err, &fileErr):
		switch fileErr.Reason {
		case reasonImageTooLarge:
			return fmt.Sprintf(msgFileTooLarge, uc.cfg.MaxImageBytes>>20)
		case reasonPDFTooLarge:
			return fmt.Sprintf(msgFileTooLarge, uc.cfg.MaxPDFBytes>>20)
		case reasonUnreadablePDF:
			return msgBrokenPDF
		default:
			return msgUnsupportedFile
		}
	case errors.Is(err, domain.ErrCapacity):
		return msgBusy
	case errors.Is(err, domain.ErrExtraction):
		return msgExtractionFailed
	case errors.As(err, &storageErr):
		if storageErr.RowAppended {
			return msgOrphanedRow
		}
		return msgStorageFailed
	case errors.Is(err, domain.ErrSessionExpired):
		return msgSessionExpired
	default:
		return msgUnexpected
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidFile):
		return "invalid_file"
	case errors.Is(err, domain.ErrCapacity):
		return "capacity"
	case errors.Is(err, domain.ErrExtraction):
		return "extraction"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, domain.ErrSessionExpired):
		return "session_expired"
	default:
		return "internal"
	}
}

func isImageFile(file domain.UploadedFile) bool {
	switch strings.ToLower(file.MIMEType) {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}
