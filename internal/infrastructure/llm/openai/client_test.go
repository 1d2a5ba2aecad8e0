package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func TestRecognizeSendsImagePartAndDecodesReply(t *testing.T) {
	var captured map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"document_type\":\"KTP\",\"nama\":\"Budi\",\"nik\":\"3201010101900001\"}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAI("sk-test", "gpt-4o-mini", server.URL, time.Second)
	got, err := client.Recognize(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got["nama"] != "Budi" {
		t.Fatalf("unexpected result %v", got)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", captured["response_format"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("unexpected messages %v", captured["messages"])
	}
	parts, _ := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", parts)
	}
	imagePart, _ := parts[1].(map[string]any)["image_url"].(map[string]any)
	if url, _ := imagePart["url"].(string); !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected image url %q", url)
	}
}

func TestRecognizeInlineStyleForDeepSeek(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"document_type\":\"NPWP\",\"nama\":\"PT Maju\"}"}}]}`))
	}))
	defer server.Close()

	client := NewDeepSeek("key", "deepseek-chat", server.URL, time.Second)
	if client.Name() != "deepseek" {
		t.Fatalf("unexpected provider name %q", client.Name())
	}
	if _, err := client.Recognize(context.Background(), []byte("img"), "image/png"); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if _, ok := captured["response_format"]; ok {
		t.Fatalf("inline style must not request a response format")
	}
	messages, _ := captured["messages"].([]any)
	content, _ := messages[0].(map[string]any)["content"].(string)
	if !strings.HasPrefix(content, "data:image/png;base64,") {
		t.Fatalf("unexpected inline content %q", content)
	}
}

func TestRecognizeMapsStatusCodes(t *testing.T) {
	cases := map[int]error{
		http.StatusTooManyRequests: domain.ErrRateLimited,
		http.StatusUnauthorized:    domain.ErrUnauthorized,
		http.StatusBadGateway:      domain.ErrTemporary,
	}
	for code, kind := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		}))
		client := NewOpenAI("k", "m", server.URL, time.Second)
		_, err := client.Recognize(context.Background(), []byte("img"), "image/jpeg")
		server.Close()
		if !domain.IsKind(err, kind) {
			t.Fatalf("status %d: error = %v, want kind %v", code, err, kind)
		}
		if !strings.Contains(err.Error(), "nope") {
			t.Fatalf("expected response body in error, got %v", err)
		}
	}
}

func TestRecognizeRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewOpenAI("k", "m", server.URL, time.Second).Recognize(context.Background(), []byte("img"), "")
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
