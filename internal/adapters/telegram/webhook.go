package telegram

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	WebhookPath        = "/telegram/webhook"
	secretTokenHeader  = "X-Telegram-Bot-Api-Secret-Token"
	webhookBodyLimitMB = 1
)

// WebhookServer receives updates pushed by Telegram.
type WebhookServer struct {
	app        *fiber.App
	dispatcher *Dispatcher
	secret     string
	// ctx outlives single requests; updates are handled after the 200.
	ctx context.Context
}

func NewWebhookServer(ctx context.Context, dispatcher *Dispatcher, secret string) *WebhookServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             webhookBodyLimitMB << 20,
		ReadTimeout:           10 * time.Second,
	})
	s := &WebhookServer{app: app, dispatcher: dispatcher, secret: secret, ctx: ctx}

	app.Use(recover.New())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post(WebhookPath, s.verifySecret(), s.handleUpdate)
	return s
}

func (s *WebhookServer) App() *fiber.App {
	return s.app
}

func (s *WebhookServer) verifySecret() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.secret == "" {
			return c.Next()
		}
		got := c.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			slog.Warn("webhook_secret_mismatch", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid secret token"})
		}
		return c.Next()
	}
}

func (s *WebhookServer) handleUpdate(c *fiber.Ctx) error {
	var u tgbotapi.Update
	if err := c.BodyParser(&u); err != nil {
		slog.Warn("webhook_bad_payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid update payload"})
	}
	s.dispatcher.Submit(s.ctx, u)
	return c.SendStatus(fiber.StatusOK)
}

// Run listens on addr until ctx is done.
func (s *WebhookServer) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("telegram_webhook_listening", "addr", addr, "path", WebhookPath)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	s.dispatcher.Wait()
	return nil
}
