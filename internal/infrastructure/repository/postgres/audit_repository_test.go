package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewAuditRepository(db), mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2025060101)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS intake_audit_events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInsertsEvent(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO intake_audit_events").
		WithArgs("evt-1", "u1", "s1", "commit_record", "success", "BJ", "KTP", "3201010101900001", "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), domain.AuditEvent{
		ID: "evt-1", UserID: "u1", SessionID: "s1", Action: "commit_record", Outcome: "success",
		BranchCode: "BJ", Kind: "KTP", PrimaryID: "3201010101900001", OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordWrapsStorageError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO intake_audit_events").WillReturnError(errors.New("connection reset"))

	err := repo.Record(context.Background(), domain.AuditEvent{ID: "evt-1"})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestStatsAggregatesOutcomes(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	early := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	mock.ExpectQuery("SELECT outcome, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"outcome", "count", "max"}).
			AddRow("success", int64(7), late).
			AddRow("duplicate_found", int64(2), early))

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 9 || stats.ByOutcome["success"] != 7 || stats.ByOutcome["duplicate_found"] != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.LastRecord.Equal(late) {
		t.Fatalf("unexpected last record %v", stats.LastRecord)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
