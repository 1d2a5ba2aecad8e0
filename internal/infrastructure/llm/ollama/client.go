package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/recognition"
)

const providerName = "ollama"

type Client struct {
	baseURL     string
	visionModel string
	httpClient  *http.Client
}

func New(baseURL, visionModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Recognizer runs the extraction prompt against a local vision model.
type Recognizer struct {
	client *Client
}

func NewRecognizer(client *Client) *Recognizer {
	return &Recognizer{client: client}
}

func (r *Recognizer) Name() string { return providerName }

func (r *Recognizer) Recognize(ctx context.Context, image []byte, _ string) (map[string]any, error) {
	request := map[string]any{
		"model":  r.client.visionModel,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.1,
		},
		"messages": []map[string]any{{
			"role":    "user",
			"content": recognition.Prompt,
			"images":  []string{base64.StdEncoding.EncodeToString(image)},
		}},
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Done bool `json:"done"`
	}
	if err := r.client.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "ollama chat", fmt.Errorf("empty message content"))
	}
	return recognition.Decode(providerName, content)
}
