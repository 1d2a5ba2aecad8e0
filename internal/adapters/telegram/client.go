package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

var allowedUpdates = []string{"message", "callback_query"}

// Client wraps the Bot API SDK and implements ports.Messenger.
type Client struct {
	bot          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	timeout      time.Duration
	executor     *resilience.Executor
}

// NewClient checks the token with getMe. An empty apiURL means the public
// Bot API.
func NewClient(ctx context.Context, apiURL, token string, timeout time.Duration, executor *resilience.Executor) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiEndpoint, fileEndpoint := tgbotapi.APIEndpoint, tgbotapi.FileEndpoint
	if apiURL = strings.TrimRight(apiURL, "/"); apiURL != "" {
		apiEndpoint = apiURL + "/bot%s/%s"
		fileEndpoint = apiURL + "/file/bot%s/%s"
	}

	httpClient := &http.Client{}
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, contextDoer{ctx: initCtx, client: httpClient})
	if err != nil {
		return nil, classifyAPIError("getMe", err)
	}
	bot.Client = httpClient

	return &Client{
		bot:          bot,
		httpClient:   httpClient,
		fileEndpoint: fileEndpoint,
		timeout:      timeout,
		executor:     executor,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// contextDoer binds a context to requests the SDK builds without one.
type contextDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// botFor returns a shallow copy of the SDK client whose requests follow ctx.
func (c *Client) botFor(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = contextDoer{ctx: ctx, client: c.httpClient}
	return &bot
}

// Send implements ports.Messenger. A message with ReplaceRef edits the
// referenced message and falls back to a new one when the edit fails.
func (c *Client) Send(ctx context.Context, userID string, msg domain.Message) (string, error) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "telegram send", fmt.Errorf("bad chat id %q", userID))
	}
	if msg.ReplaceRef != "" {
		err := c.editMessage(ctx, chatID, msg)
		if err == nil || isNotModified(err) {
			return msg.ReplaceRef, nil
		}
	}
	return c.sendMessage(ctx, chatID, msg)
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, msg domain.Message) (string, error) {
	cfg := tgbotapi.NewMessage(chatID, msg.Text)
	cfg.ParseMode = tgbotapi.ModeHTML
	if markup := inlineKeyboard(msg.Buttons); markup != nil {
		cfg.ReplyMarkup = *markup
	}
	var sent tgbotapi.Message
	err := c.call(ctx, "sendMessage", 0, func(bot *tgbotapi.BotAPI) error {
		var err error
		sent, err = bot.Send(cfg)
		return err
	})
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (c *Client) editMessage(ctx context.Context, chatID int64, msg domain.Message) error {
	messageID, err := strconv.Atoi(msg.ReplaceRef)
	if err != nil {
		return fmt.Errorf("telegram editMessageText: bad message ref %q", msg.ReplaceRef)
	}
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.ReplyMarkup = inlineKeyboard(msg.Buttons)
	return c.request(ctx, "editMessageText", cfg)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.request(ctx, "answerCallbackQuery", tgbotapi.NewCallback(callbackID, ""))
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = allowedUpdates

	var updates []tgbotapi.Update
	err := c.call(ctx, "getUpdates", timeout+10*time.Second, func(bot *tgbotapi.BotAPI) error {
		var err error
		updates, err = bot.GetUpdates(cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers url. The secret token is not part of the SDK's
// webhook config, so the request is built by hand.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", allowedUpdates); err != nil {
		return fmt.Errorf("encode allowed updates: %w", err)
	}
	return c.call(ctx, "setWebhook", 0, func(bot *tgbotapi.BotAPI) error {
		_, err := bot.MakeRequest("setWebhook", params)
		return err
	})
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.request(ctx, "deleteWebhook", tgbotapi.DeleteWebhookConfig{})
}

// DownloadFile fetches a file by id, refusing anything above maxBytes.
func (c *Client) DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	var file tgbotapi.File
	err := c.call(ctx, "getFile", 0, func(bot *tgbotapi.BotAPI) error {
		var err error
		file, err = bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
		return err
	})
	if err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "telegram getFile", errors.New("empty file_path"))
	}
	if maxBytes > 0 && int64(file.FileSize) > maxBytes {
		return nil, tooLarge()
	}

	// file.Link always points at the public API host
	url := fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath)
	var data []byte
	err = c.run(ctx, "telegram.download", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create download request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "telegram download", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return codeKind("download", resp.StatusCode, resp.Status)
		}
		reader := io.Reader(resp.Body)
		if maxBytes > 0 {
			reader = io.LimitReader(resp.Body, maxBytes+1)
		}
		data, err = io.ReadAll(reader)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "telegram download", err)
		}
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			return tooLarge()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func tooLarge() error {
	return domain.WrapError(domain.ErrInvalidFile, "telegram download", &domain.InvalidFileError{Reason: "file too large"})
}

func (c *Client) request(ctx context.Context, method string, cfg tgbotapi.Chattable) error {
	return c.call(ctx, method, 0, func(bot *tgbotapi.BotAPI) error {
		_, err := bot.Request(cfg)
		return err
	})
}

// call runs one SDK call under the executor. A zero timeout means the
// client default.
func (c *Client) call(ctx context.Context, method string, timeout time.Duration, fn func(*tgbotapi.BotAPI) error) error {
	if timeout <= 0 {
		timeout = c.timeout
	}
	return c.run(ctx, "telegram."+method, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return classifyAPIError(method, fn(c.botFor(ctx)))
	})
}

func (c *Client) run(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, op, fn, classifyRetry)
}

// classifyAPIError maps SDK failures onto domain kinds. Anything that is
// not an API answer (transport errors, undecodable bodies) is temporary.
func classifyAPIError(method string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return domain.WrapError(domain.ErrTemporary, "telegram "+method, err)
	}
	return codeKind(method, apiErr.Code, apiErr.Message)
}

func codeKind(method string, code int, description string) error {
	err := &tgbotapi.Error{Code: code, Message: description}
	op := "telegram " + method
	switch {
	case code == http.StatusTooManyRequests:
		return domain.WrapError(domain.ErrRateLimited, op, err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.WrapError(domain.ErrUnauthorized, op, err)
	case code >= 500:
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
}

func classifyRetry(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrRateLimited):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false, Backoff: resilience.BackoffExponential}
	case domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffExponential}
	default:
		return resilience.ErrorClassification{}
	}
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

func inlineKeyboard(rows [][]domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}
