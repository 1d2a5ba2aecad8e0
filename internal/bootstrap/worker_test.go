package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/config"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/observability/metrics"
)

type sinkFake struct {
	events []domain.AuditEvent
	err    error
}

func (s *sinkFake) Record(_ context.Context, event domain.AuditEvent) error {
	s.events = append(s.events, event)
	return s.err
}

func TestWorkerHandlePersists(t *testing.T) {
	sink := &sinkFake{}
	w := &Worker{Sink: sink, Metrics: metrics.NewWorkerMetrics("worker")}

	event := domain.AuditEvent{ID: "evt-1", Action: "commit_record", OccurredAt: time.Now().Add(-time.Second)}
	if err := w.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].ID != "evt-1" {
		t.Fatalf("unexpected persisted events %+v", sink.events)
	}

	sink.err = errors.New("db down")
	if err := w.Handle(context.Background(), event); err == nil {
		t.Fatalf("expected error when the sink fails")
	}
}

func TestNewWorkerRequiresQueueAndDatabase(t *testing.T) {
	_, err := NewWorker(context.Background(), config.Config{NATSURL: "nats://localhost:4222"})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewRecognizerSelectsProvider(t *testing.T) {
	cases := map[string]string{
		config.ProviderOpenAI:   "openai",
		config.ProviderDeepSeek: "deepseek",
		config.ProviderOllama:   "ollama",
	}
	for provider, want := range cases {
		recognizer, _, err := NewRecognizer(context.Background(), config.Config{ActiveAIService: provider, OllamaURL: "http://localhost:11434"})
		if err != nil {
			t.Fatalf("NewRecognizer(%s) error = %v", provider, err)
		}
		if recognizer.Name() != want {
			t.Fatalf("NewRecognizer(%s).Name() = %q", provider, recognizer.Name())
		}
	}
	if _, _, err := NewRecognizer(context.Background(), config.Config{ActiveAIService: "bard"}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewAuditFallsBackToLog(t *testing.T) {
	w, err := newAudit(context.Background(), config.Config{EnableAuditLog: true})
	if err != nil {
		t.Fatalf("newAudit() error = %v", err)
	}
	defer w.close()
	if w.name != "log" || w.sink == nil || w.reader != nil {
		t.Fatalf("unexpected wiring %+v", w)
	}

	w, err = newAudit(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("newAudit() error = %v", err)
	}
	if w.name != "disabled" || w.sink != nil {
		t.Fatalf("audit must be disabled, got %+v", w)
	}
}

func TestNewStoresLocalBackend(t *testing.T) {
	dir := t.TempDir()
	records, files, err := newStores(context.Background(), config.Config{
		StoreBackend:      config.BackendLocal,
		LocalWorkbookPath: dir + "/intake.xlsx",
		StoragePath:       dir + "/files",
	})
	if err != nil {
		t.Fatalf("newStores() error = %v", err)
	}
	if records == nil || files == nil {
		t.Fatalf("stores must be set")
	}
}
