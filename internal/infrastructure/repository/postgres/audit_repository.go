package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// AuditRepository is the append-only audit trail of commits, archives and
// duplicate decisions.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// bot and worker may start at the same time
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025060101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS intake_audit_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	branch_code TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	primary_id TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intake_audit_events_occurred_at ON intake_audit_events(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_intake_audit_events_primary_id ON intake_audit_events(primary_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Record is idempotent on the event id so redelivered queue messages are
// harmless.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO intake_audit_events (
	id, user_id, session_id, action, outcome, branch_code, kind, primary_id, detail, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.UserID, event.SessionID, event.Action, event.Outcome, event.BranchCode,
		event.Kind, event.PrimaryID, event.Detail, event.OccurredAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "insert audit event", err)
	}
	return nil
}

func (r *AuditRepository) Stats(ctx context.Context) (domain.AuditStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT outcome, COUNT(*), MAX(occurred_at)
FROM intake_audit_events
GROUP BY outcome
`)
	if err != nil {
		return domain.AuditStats{}, domain.WrapError(domain.ErrStorage, "query audit stats", err)
	}
	defer rows.Close()

	stats := domain.AuditStats{ByOutcome: map[string]int64{}}
	for rows.Next() {
		var outcome string
		var count int64
		var last time.Time
		if err := rows.Scan(&outcome, &count, &last); err != nil {
			return domain.AuditStats{}, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.ByOutcome[outcome] = count
		stats.Total += count
		if last.After(stats.LastRecord) {
			stats.LastRecord = last
		}
	}
	if err := rows.Err(); err != nil {
		return domain.AuditStats{}, fmt.Errorf("iterate audit stats: %w", err)
	}
	return stats, nil
}
