package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
)

const (
	msgFileTooLarge  = "❌ File terlalu besar untuk diunduh."
	msgDownloadError = "❌ Gagal mengunduh file. Silakan kirim ulang."
)

// Files is the subset of the Bot API the dispatcher needs besides
// sending messages.
type Files interface {
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

type DispatcherOptions struct {
	RateLimit   rate.Limit
	Burst       int
	MaxDownload int64
}

// Dispatcher turns updates into events. Updates for one user are handled
// in arrival order on a dedicated goroutine; different users run in
// parallel.
type Dispatcher struct {
	handler   ports.ConversationHandler
	files     Files
	messenger ports.Messenger
	opts      DispatcherOptions

	mu       sync.Mutex
	queues   map[string][]tgbotapi.Update
	limiters map[string]*rate.Limiter
	wg       sync.WaitGroup
}

func NewDispatcher(handler ports.ConversationHandler, files Files, messenger ports.Messenger, opts DispatcherOptions) *Dispatcher {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Dispatcher{
		handler:   handler,
		files:     files,
		messenger: messenger,
		opts:      opts,
		queues:    make(map[string][]tgbotapi.Update),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Submit queues an update. A cancel interrupts in-flight work right away
// and is never rate limited.
func (d *Dispatcher) Submit(ctx context.Context, u tgbotapi.Update) {
	userID := updateUserID(u)
	if userID == "" {
		return
	}
	cancel := isCancel(u)
	if cancel {
		d.handler.Interrupt(userID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !cancel && !d.limiterFor(userID).Allow() {
		slog.Warn("update_rate_limited", "user_id", userID, "update_id", u.UpdateID)
		return
	}
	queue, running := d.queues[userID]
	d.queues[userID] = append(queue, u)
	if !running {
		d.wg.Add(1)
		go d.drain(ctx, userID)
	}
}

// Wait blocks until every queued update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Prune drops the limiters of idle users. A limiter is only dropped once
// its bucket is full again, so a fresh one behaves the same.
func (d *Dispatcher) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	pruned := 0
	for userID, l := range d.limiters {
		if _, busy := d.queues[userID]; busy {
			continue
		}
		if l.Tokens() >= float64(d.opts.Burst) {
			delete(d.limiters, userID)
			pruned++
		}
	}
	return pruned
}

// RunPruner calls Prune every interval until ctx is done.
func (d *Dispatcher) RunPruner(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := d.Prune(); n > 0 {
				slog.Debug("rate_limiters_pruned", "count", n)
			}
		}
	}
}

func (d *Dispatcher) limiterFor(userID string) *rate.Limiter {
	l, ok := d.limiters[userID]
	if !ok {
		l = rate.NewLimiter(d.opts.RateLimit, d.opts.Burst)
		d.limiters[userID] = l
	}
	return l
}

func (d *Dispatcher) drain(ctx context.Context, userID string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		u := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.process(ctx, userID, u)
	}
}

func (d *Dispatcher) process(ctx context.Context, userID string, u tgbotapi.Update) {
	if u.CallbackQuery != nil && d.files != nil {
		if err := d.files.AnswerCallbackQuery(ctx, u.CallbackQuery.ID); err != nil {
			slog.Debug("callback_answer_failed", "user_id", userID, "error", err)
		}
	}

	event, ok := d.event(ctx, userID, u)
	if !ok {
		return
	}
	if err := d.handler.Handle(ctx, userID, event); err != nil {
		slog.Error("update_handle_failed", "user_id", userID, "update_id", u.UpdateID, "event", domain.EventName(event), "error", err)
	}
}

func (d *Dispatcher) event(ctx context.Context, userID string, u tgbotapi.Update) (domain.Event, bool) {
	if u.Message != nil {
		if ref, ok := attachment(u.Message); ok {
			return d.fileEvent(ctx, userID, u.Message, ref)
		}
	}
	return textEvent(u)
}

func (d *Dispatcher) fileEvent(ctx context.Context, userID string, m *tgbotapi.Message, ref fileRef) (domain.Event, bool) {
	data, err := d.files.DownloadFile(ctx, ref.FileID, d.opts.MaxDownload)
	if err != nil {
		slog.Warn("file_download_failed", "user_id", userID, "file_id", ref.FileID, "size", ref.Size, "error", err)
		text := msgDownloadError
		var invalid *domain.InvalidFileError
		if errors.As(err, &invalid) {
			text = msgFileTooLarge
		}
		if _, sendErr := d.messenger.Send(ctx, userID, domain.Message{Text: text}); sendErr != nil {
			slog.Warn("message_send_failed", "user_id", userID, "error", sendErr)
		}
		return nil, false
	}

	file := domain.UploadedFile{Data: data, Name: ref.Name, MIMEType: ref.MIMEType}
	if ref.Photo {
		return domain.ImageReceived{File: file, Caption: m.Caption}, true
	}
	return domain.FileReceived{File: file}, true
}
