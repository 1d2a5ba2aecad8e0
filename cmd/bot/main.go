package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/iunoo/bot-autoinput-npwpktp/internal/adapters/http"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/adapters/telegram"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/bootstrap"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("bot", cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runTransport(gctx, app)
	})
	g.Go(func() error {
		router := httpadapter.NewRouter(app.Conversation, app.AuditReader, app.Metrics.Handler())
		return httpadapter.Serve(gctx, ":"+cfg.OpsPort, app.Metrics.Middleware(router.Handler()))
	})
	g.Go(func() error {
		return app.Sessions.RunSweeper(gctx, cfg.SessionSweepInterval)
	})
	g.Go(func() error {
		return app.Dispatcher.RunPruner(gctx, cfg.SessionSweepInterval)
	})

	if err := g.Wait(); err != nil {
		slog.Error("bot_stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("bot_stopped")
}

func runTransport(ctx context.Context, app *bootstrap.App) error {
	cfg := app.Config
	if cfg.TelegramMode == config.ModeWebhook {
		if err := app.Telegram.SetWebhook(ctx, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
			return err
		}
		server := telegram.NewWebhookServer(ctx, app.Dispatcher, cfg.TelegramWebhookSecret)
		return server.Run(ctx, ":"+cfg.WebhookPort)
	}

	// a leftover webhook makes getUpdates fail with 409
	if err := app.Telegram.DeleteWebhook(ctx); err != nil {
		slog.Warn("telegram_delete_webhook_failed", "error", err)
	}
	return telegram.NewPoller(app.Telegram, app.Dispatcher, 0).Run(ctx)
}
