package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type updateSource interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error)
}

// Poller feeds getUpdates results into the dispatcher.
type Poller struct {
	source      updateSource
	dispatcher  *Dispatcher
	pollTimeout time.Duration
	errorPause  time.Duration
}

func NewPoller(source updateSource, dispatcher *Dispatcher, pollTimeout time.Duration) *Poller {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{
		source:      source,
		dispatcher:  dispatcher,
		pollTimeout: pollTimeout,
		errorPause:  3 * time.Second,
	}
}

// Run polls until ctx is done and then waits for queued updates.
func (p *Poller) Run(ctx context.Context) error {
	defer p.dispatcher.Wait()

	slog.Info("telegram_polling_started", "timeout", p.pollTimeout)
	var offset int
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			slog.Warn("telegram_poll_failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.errorPause):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatcher.Submit(ctx, u)
		}
	}
}
