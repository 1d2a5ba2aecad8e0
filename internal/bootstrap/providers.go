package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/google"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/ollama"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/openai"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/vertex"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/queue/nats"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/repository/postgres"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/spreadsheet/xlsx"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/storage/localfs"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/logging"
)

// NewRecognizer picks the recognition backend named by ACTIVE_AI_SERVICE.
// The returned close func may be nil.
func NewRecognizer(ctx context.Context, cfg config.Config) (ports.Recognizer, func(), error) {
	switch cfg.ActiveAIService {
	case config.ProviderOpenAI:
		return openai.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.AITimeout), nil, nil
	case config.ProviderDeepSeek:
		return openai.NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekBaseURL, cfg.AITimeout), nil, nil
	case config.ProviderOllama:
		return ollama.NewRecognizer(ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, cfg.AITimeout)), nil, nil
	case config.ProviderVertex:
		recognizer, err := vertex.NewRecognizer(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, nil, err
		}
		return recognizer, func() {
			if err := recognizer.Close(); err != nil {
				slog.Warn("vertex_close_failed", "error", err)
			}
		}, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "select recognizer", fmt.Errorf("unknown provider %q", cfg.ActiveAIService))
	}
}

func newStores(ctx context.Context, cfg config.Config) (ports.RecordStore, ports.FileStore, error) {
	switch cfg.StoreBackend {
	case config.BackendLocal:
		records, err := xlsx.New(cfg.LocalWorkbookPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init workbook store: %w", err)
		}
		files, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init file storage: %w", err)
		}
		return records, files, nil
	case config.BackendGoogle:
		executor := resilience.NewExecutor(resilience.DefaultConfig())
		opts := google.ClientOptions(cfg.GoogleCredentialsFile)
		records, err := google.NewSheetStore(ctx, cfg.GoogleSheetID, executor, opts...)
		if err != nil {
			return nil, nil, err
		}
		files, err := google.NewDriveStore(ctx, executor, opts...)
		if err != nil {
			return nil, nil, err
		}
		return records, files, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "select store", fmt.Errorf("unknown backend %q", cfg.StoreBackend))
	}
}

type auditWiring struct {
	name   string
	sink   ports.AuditSink
	reader ports.AuditReader
	close  func()
}

// newAudit prefers NATS, then Postgres, then the log. The Postgres reader
// is attached whenever a DSN is configured so /admin_stats has totals.
func newAudit(ctx context.Context, cfg config.Config) (auditWiring, error) {
	var w auditWiring
	var closers []func()
	w.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var repo *postgres.AuditRepository
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return w, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo = postgres.NewAuditRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			w.close()
			return w, fmt.Errorf("ensure audit schema: %w", err)
		}
		w.reader = repo
	}

	if !cfg.EnableAuditLog {
		w.name = "disabled"
		return w, nil
	}

	switch {
	case cfg.NATSURL != "":
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			w.close()
			return w, fmt.Errorf("init audit queue: %w", err)
		}
		closers = append(closers, queue.Close)
		w.name, w.sink = "nats", queue
	case repo != nil:
		w.name, w.sink = "postgres", repo
	default:
		w.name, w.sink = "log", logging.NewAuditLog(slog.Default())
	}
	return w, nil
}
