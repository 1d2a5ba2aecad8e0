package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/adapters/telegram"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/usecase"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/pdf"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/session"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/metrics"
)

const telegramTimeout = 30 * time.Second

type App struct {
	Config config.Config

	Sessions     *session.Store
	Metrics      *metrics.BotMetrics
	Telegram     *telegram.Client
	Conversation *usecase.ConversationUseCase
	Dispatcher   *telegram.Dispatcher
	AuditReader  ports.AuditReader

	closeFn []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	branches, err := cfg.Branches()
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(session.Options{
		IdleTimeout: cfg.SessionTimeout,
		MaxSessions: cfg.MaxConcurrentSessions,
	})
	botMetrics := metrics.NewBotMetrics("bot", func() float64 {
		return float64(sessions.Stats().Active)
	})

	extractor, closeRecognizer, err := newExtractor(ctx, cfg, botMetrics)
	if err != nil {
		return nil, err
	}
	app.onClose(closeRecognizer)

	records, files, err := newStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	audit, err := newAudit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.onClose(audit.close)

	committer := usecase.NewCommitRecordUseCase(records, files, audit.sink, botMetrics, usecase.CommitOptions{
		DuplicateCheck: cfg.EnableDuplicateCheck,
		Timeout:        cfg.GoogleTimeout,
	})

	client, err := telegram.NewClient(ctx, cfg.TelegramAPIURL, cfg.TelegramBotToken, telegramTimeout, resilience.NewExecutor(resilience.DefaultConfig()))
	if err != nil {
		return nil, fmt.Errorf("init telegram client: %w", err)
	}
	conversation := usecase.NewConversationUseCase(
		sessions,
		extractor,
		committer,
		client,
		branches,
		pdf.NewInspector(),
		audit.reader,
		botMetrics,
		usecase.ConversationConfig{
			MaxImageBytes: cfg.MaxImageBytes(),
			MaxPDFBytes:   cfg.MaxPDFBytes(),
			AdminUserIDs:  cfg.AdminUserIDs,
		},
	)
	dispatcher := telegram.NewDispatcher(conversation, client, client, telegram.DispatcherOptions{
		RateLimit:   rate.Limit(cfg.UserRateLimitRPS),
		Burst:       cfg.UserRateLimitBurst,
		MaxDownload: int64(max(cfg.MaxImageBytes(), cfg.MaxPDFBytes())),
	})

	app.Sessions = sessions
	app.Metrics = botMetrics
	app.Telegram = client
	app.Conversation = conversation
	app.Dispatcher = dispatcher
	app.AuditReader = audit.reader

	slog.Info("bot_bootstrapped",
		"provider", cfg.ActiveAIService,
		"store_backend", cfg.StoreBackend,
		"audit_sink", audit.name,
		"branches", len(branches.Codes()),
		"telegram_mode", cfg.TelegramMode,
		"bot_username", client.Username(),
	)
	ok = true
	return app, nil
}

func (a *App) onClose(fn func()) {
	if fn != nil {
		a.closeFn = append(a.closeFn, fn)
	}
}

func (a *App) Close() {
	for i := len(a.closeFn) - 1; i >= 0; i-- {
		a.closeFn[i]()
	}
	a.closeFn = nil
}

// NewExtractor builds only the extraction pipeline, for the operator CLI.
func NewExtractor(ctx context.Context, cfg config.Config) (*usecase.ExtractDocumentUseCase, func(), error) {
	extractor, closeFn, err := newExtractor(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return extractor, closeFn, nil
}

func newExtractor(ctx context.Context, cfg config.Config, m ports.IntakeMetrics) (*usecase.ExtractDocumentUseCase, func(), error) {
	recognizer, closeFn, err := NewRecognizer(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init recognizer: %w", err)
	}
	executor := resilience.NewExecutor(resilience.ExtractionConfig(
		cfg.ExtractionMaxAttempts,
		cfg.ExtractionRateLimitBackoff,
		cfg.ExtractionRetryPause,
	))
	return usecase.NewExtractDocumentUseCase(recognizer, executor, cfg.AITimeout, m), closeFn, nil
}
