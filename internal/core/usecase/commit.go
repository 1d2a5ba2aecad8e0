package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
)

const (
	ArchivedImagesFolder = "Sudah diinput"
	ArchivedPDFFolder    = "PDF"
)

// DuplicateColumns are the sheet columns holding tax_id_15, primary_id and
// the composite tax key.
var DuplicateColumns = []string{"F", "G", "H"}

type CommitOutcome string

const (
	CommitSuccess        CommitOutcome = "success"
	CommitDuplicateFound CommitOutcome = "duplicate_found"
)

type CommitRequest struct {
	UserID    string
	SessionID string
	Record    *domain.Record
	Branch    domain.Branch
	StoreName string
	File      domain.UploadedFile
}

type CommitResult struct {
	Outcome CommitOutcome
	FileID  string
	Sheet   string
}

type ArchiveRequest struct {
	UserID    string
	SessionID string
	Branch    domain.Branch
	File      domain.UploadedFile
	FileName  string
}

type ArchiveResult struct {
	FileID   string
	FileName string
}

type CommitOptions struct {
	DuplicateCheck bool
	Timeout        time.Duration
}

type CommitRecordUseCase struct {
	records ports.RecordStore
	files   ports.FileStore
	audit   ports.AuditSink
	metrics ports.IntakeMetrics
	opts    CommitOptions

	// parentID + "/" + name -> folder id; entries are never removed
	folders sync.Map
	now     func() time.Time
}

func NewCommitRecordUseCase(
	records ports.RecordStore,
	files ports.FileStore,
	audit ports.AuditSink,
	metrics ports.IntakeMetrics,
	opts CommitOptions,
) *CommitRecordUseCase {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &CommitRecordUseCase{
		records: records,
		files:   files,
		audit:   audit,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// Commit checks for duplicates, appends the sheet row and uploads the
// image. A failed upload after a successful append is not rolled back.
func (uc *CommitRecordUseCase) Commit(ctx context.Context, req CommitRequest, bypassDuplicate bool) (CommitResult, error) {
	if req.Record == nil {
		return CommitResult{}, domain.WrapError(domain.ErrInvalidInput, "commit", fmt.Errorf("record is required"))
	}
	sheet := req.Branch.SheetName
	result := CommitResult{Sheet: sheet}
	logger := slog.With("user_id", req.UserID, "session_id", req.SessionID, "branch", req.Branch.Code)

	if uc.opts.DuplicateCheck && !bypassDuplicate {
		tokens := req.Record.DuplicateTokens()
		if len(tokens) > 0 {
			var found bool
			err := uc.withTimeout(ctx, func(ctx context.Context) error {
				var err error
				found, err = uc.records.FindRows(ctx, sheet, DuplicateColumns, tokens)
				return err
			})
			if err != nil {
				uc.observe("failed")
				return result, &domain.StorageError{Op: "find rows", Err: err}
			}
			if found {
				logger.Info("commit_duplicate_found", "kind", req.Record.Kind(), "sheet", sheet)
				uc.record(ctx, req.UserID, req.SessionID, "commit_record", string(CommitDuplicateFound), req.Branch.Code, req.Record, "")
				uc.observe(string(CommitDuplicateFound))
				result.Outcome = CommitDuplicateFound
				return result, nil
			}
		}
	}

	row := req.Record.SheetRow(req.StoreName)
	if err := uc.withTimeout(ctx, func(ctx context.Context) error {
		return uc.records.AppendRow(ctx, sheet, row)
	}); err != nil {
		uc.observe("failed")
		uc.record(ctx, req.UserID, req.SessionID, "commit_record", "failed", req.Branch.Code, req.Record, err.Error())
		return result, &domain.StorageError{Op: "append row", Err: err}
	}

	fileName := domain.SanitizeFileName(fmt.Sprintf("%s - %s%s", req.Record.Name, req.Record.Kind(), imageExtension(req.File)))
	fileID, err := uc.upload(ctx, req.Branch.FolderID, ArchivedImagesFolder, fileName, req.File)
	if err != nil {
		logger.Error("commit_upload_orphaned_row",
			"sheet", sheet,
			"primary_id", req.Record.PrimaryID(),
			"file_name", fileName,
			"error", err,
		)
		uc.observe("orphaned_row")
		uc.record(ctx, req.UserID, req.SessionID, "commit_record", "orphaned_row", req.Branch.Code, req.Record, err.Error())
		return result, &domain.StorageError{Op: "upload file", RowAppended: true, Err: err}
	}

	detail := ""
	if bypassDuplicate {
		detail = "duplicate_override"
	}
	logger.Info("commit_completed", "kind", req.Record.Kind(), "sheet", sheet, "file_id", fileID, "bypass_duplicate", bypassDuplicate)
	uc.record(ctx, req.UserID, req.SessionID, "commit_record", string(CommitSuccess), req.Branch.Code, req.Record, detail)
	uc.observe(string(CommitSuccess))

	result.Outcome = CommitSuccess
	result.FileID = fileID
	return result, nil
}

// ArchiveFile stores an uploaded PDF under the branch's PDF folder.
func (uc *CommitRecordUseCase) ArchiveFile(ctx context.Context, req ArchiveRequest) (ArchiveResult, error) {
	name, err := ValidateArchiveName(req.FileName)
	if err != nil {
		return ArchiveResult{}, err
	}
	ext := strings.ToLower(filepath.Ext(req.File.Name))
	if ext == "" {
		ext = ".pdf"
	}
	fileName := domain.SanitizeFileName(name + ext)

	fileID, err := uc.upload(ctx, req.Branch.FolderID, ArchivedPDFFolder, fileName, req.File)
	if err != nil {
		uc.record(ctx, req.UserID, req.SessionID, "archive_file", "failed", req.Branch.Code, nil, err.Error())
		return ArchiveResult{}, &domain.StorageError{Op: "archive file", Err: err}
	}

	slog.Info("archive_completed", "user_id", req.UserID, "branch", req.Branch.Code, "file_name", fileName, "file_id", fileID)
	uc.record(ctx, req.UserID, req.SessionID, "archive_file", string(CommitSuccess), req.Branch.Code, nil, fileName)
	return ArchiveResult{FileID: fileID, FileName: fileName}, nil
}

// RecordDecision audits how the user resolved a duplicate warning.
func (uc *CommitRecordUseCase) RecordDecision(ctx context.Context, userID, sessionID, branch string, rec *domain.Record, decision string) {
	uc.record(ctx, userID, sessionID, "duplicate_decision", decision, branch, rec, "")
}

// ValidateArchiveName trims the user supplied PDF name and enforces 2..100
// characters.
func ValidateArchiveName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch n := len([]rune(name)); {
	case n < 2:
		return "", domain.NewValidationError("", "Nama file terlalu pendek (minimum 2 karakter)")
	case n > 100:
		return "", domain.NewValidationError("", "Nama file terlalu panjang (maksimum 100 karakter)")
	}
	return name, nil
}

func (uc *CommitRecordUseCase) upload(ctx context.Context, parentID, subfolder, fileName string, file domain.UploadedFile) (string, error) {
	folderID, err := uc.subfolder(ctx, parentID, subfolder)
	if err != nil {
		return "", err
	}
	var fileID string
	err = uc.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		fileID, err = uc.files.UploadFile(ctx, folderID, fileName, file.Data, file.MIMEType)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}
	return fileID, nil
}

func (uc *CommitRecordUseCase) subfolder(ctx context.Context, parentID, name string) (string, error) {
	key := parentID + "/" + name
	if id, ok := uc.folders.Load(key); ok {
		return id.(string), nil
	}
	var folderID string
	err := uc.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		folderID, err = uc.files.FindOrCreateSubfolder(ctx, parentID, name)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("find or create subfolder %q: %w", name, err)
	}
	actual, _ := uc.folders.LoadOrStore(key, folderID)
	return actual.(string), nil
}

func (uc *CommitRecordUseCase) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
	defer cancel()
	return fn(callCtx)
}

func (uc *CommitRecordUseCase) record(ctx context.Context, userID, sessionID, action, outcome, branch string, rec *domain.Record, detail string) {
	if uc.audit == nil {
		return
	}
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		Action:     action,
		Outcome:    outcome,
		BranchCode: branch,
		Detail:     detail,
		OccurredAt: uc.now().UTC(),
	}
	if rec != nil {
		event.Kind = string(rec.Kind())
		event.PrimaryID = rec.PrimaryID()
	}
	if err := uc.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("audit_record_failed", "action", action, "outcome", outcome, "error", err)
	}
}

func (uc *CommitRecordUseCase) observe(outcome string) {
	if uc.metrics != nil {
		uc.metrics.ObserveCommit(outcome)
	}
}

func imageExtension(file domain.UploadedFile) string {
	switch strings.ToLower(file.MIMEType) {
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if ext := strings.ToLower(filepath.Ext(file.Name)); ext == ".png" || ext == ".jpeg" {
		return ext
	}
	return ".jpg"
}
