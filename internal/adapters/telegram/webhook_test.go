package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func TestWebhookRejectsWrongSecret(t *testing.T) {
	handler := &handlerFake{}
	server := NewWebhookServer(context.Background(), NewDispatcher(handler, &filesFake{}, &messengerFake{}, DispatcherOptions{}), "s3cret")

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(`{"update_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretTokenHeader, "wrong")
	resp, err := server.App().Test(req)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	handler := &handlerFake{}
	dispatcher := NewDispatcher(handler, &filesFake{}, &messengerFake{}, DispatcherOptions{})
	server := NewWebhookServer(context.Background(), dispatcher, "s3cret")

	body := `{"update_id":5,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/help"}}`
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretTokenHeader, "s3cret")
	resp, err := server.App().Test(req)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	dispatcher.Wait()

	if len(handler.handled) != 1 || handler.handled[0].userID != "42" {
		t.Fatalf("unexpected handled %+v", handler.handled)
	}
	if cmd, ok := handler.handled[0].event.(domain.CommandReceived); !ok || cmd.Name != "help" {
		t.Fatalf("unexpected event %#v", handler.handled[0].event)
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	server := NewWebhookServer(context.Background(), NewDispatcher(&handlerFake{}, &filesFake{}, &messengerFake{}, DispatcherOptions{}), "")

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.App().Test(req)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

type sourceFake struct {
	batches [][]tgbotapi.Update
	offsets []int
	cancel  context.CancelFunc
}

func (s *sourceFake) GetUpdates(_ context.Context, offset int, _ time.Duration) ([]tgbotapi.Update, error) {
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		s.cancel()
		return nil, context.Canceled
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func TestPollerAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := &handlerFake{}
	source := &sourceFake{
		batches: [][]tgbotapi.Update{
			{textUpdate(10, 42, "a"), textUpdate(11, 43, "b")},
			{textUpdate(12, 42, "c")},
		},
		cancel: cancel,
	}
	poller := NewPoller(source, NewDispatcher(handler, &filesFake{}, &messengerFake{}, DispatcherOptions{}), time.Second)

	if err := poller.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(source.offsets) != 3 || source.offsets[1] != 12 || source.offsets[2] != 13 {
		t.Fatalf("unexpected offsets %v", source.offsets)
	}
	if len(handler.handled) != 3 {
		t.Fatalf("expected 3 handled updates, got %d", len(handler.handled))
	}
}
