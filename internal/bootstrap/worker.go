package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/queue/nats"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/repository/postgres"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/metrics"
)

// Worker moves audit events from NATS into Postgres.
type Worker struct {
	Queue   ports.AuditQueue
	Sink    ports.AuditSink
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	if cfg.NATSURL == "" || cfg.PostgresDSN == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "audit worker", fmt.Errorf("NATS_URL and POSTGRES_DSN are required"))
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	return &Worker{
		Queue:   queue,
		Sink:    repo,
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Handle persists one event. Inserts are idempotent on the event id, so
// redelivery is harmless.
func (w *Worker) Handle(ctx context.Context, event domain.AuditEvent) error {
	start := time.Now()
	if w.Metrics != nil {
		w.Metrics.StartEvent()
		w.Metrics.ObserveQueueLag(start.Sub(event.OccurredAt))
	}

	persistCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := w.Sink.Record(persistCtx, event)

	if w.Metrics != nil {
		w.Metrics.FinishEvent(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("persist audit event %s: %w", event.ID, err)
	}
	slog.Debug("audit_event_persisted", "event_id", event.ID, "action", event.Action)
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
