package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/recognition"
)

const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// ContentStyle selects how the image travels inside the chat message.
type ContentStyle int

const (
	// ContentParts sends a text part and an image_url part.
	ContentParts ContentStyle = iota
	// ContentInline prefixes the prompt with the data URI in a plain string,
	// for chat-completions compatible APIs without multi-part content.
	ContentInline
)

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Style    ContentStyle
	Timeout  time.Duration
}

// Client is a Recognizer for OpenAI-compatible chat completion APIs.
type Client struct {
	provider   string
	baseURL    string
	apiKey     string
	model      string
	style      ContentStyle
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return &Client{
		provider:   provider,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		style:      cfg.Style,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return New(Config{Provider: "openai", BaseURL: baseURL, APIKey: apiKey, Model: model, Style: ContentParts, Timeout: timeout})
}

func NewDeepSeek(apiKey, model, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	return New(Config{Provider: "deepseek", BaseURL: baseURL, APIKey: apiKey, Model: model, Style: ContentInline, Timeout: timeout})
}

func (c *Client) Name() string { return c.provider }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Recognize(ctx context.Context, image []byte, mimeType string) (map[string]any, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	request := map[string]any{
		"model":       c.model,
		"max_tokens":  1000,
		"temperature": 0.1,
	}
	switch c.style {
	case ContentInline:
		request["messages"] = []map[string]any{{
			"role":    "user",
			"content": dataURI + "\n" + recognition.Prompt,
		}}
	default:
		request["response_format"] = map[string]any{"type": "json_object"}
		request["messages"] = []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": recognition.Prompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURI}},
			},
		}}
	}

	var response chatResponse
	if err := c.postJSON(ctx, "/chat/completions", request, &response, "chat"); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, domain.WrapError(domain.ErrMalformedResponse, c.provider+" chat", fmt.Errorf("no choices in response"))
	}
	return recognition.Decode(c.provider, response.Choices[0].Message.Content)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return recognition.TransportError(c.provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return recognition.StatusError(c.provider, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, c.provider+" "+operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
