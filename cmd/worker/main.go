package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/iunoo/bot-autoinput-npwpktp/internal/adapters/http"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/bootstrap"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("audit-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", worker.Metrics.Handler())
		return httpadapter.Serve(gctx, ":"+cfg.WorkerMetricsPort, mux)
	})
	g.Go(func() error {
		slog.Info("audit_worker_subscribed", "subject", cfg.NATSSubject)
		return worker.Queue.SubscribeAuditEvents(gctx, worker.Handle)
	})

	if err := g.Wait(); err != nil {
		slog.Error("audit_worker_stopped", "error", err)
		os.Exit(1)
	}
}
