package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/llm/recognition"
)

const (
	providerName = "vertex"

	systemInstruction = "You extract fields from Indonesian identity documents and answer with a single JSON object."
)

// Recognizer runs the extraction prompt on a Gemini model in Vertex AI.
type Recognizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewRecognizer(ctx context.Context, projectID, region, modelName string) (*Recognizer, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex recognizer: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  genai.Ptr[int32](1000),
	}

	return &Recognizer{client: client, model: model}, nil
}

func (r *Recognizer) Name() string { return providerName }

func (r *Recognizer) Recognize(ctx context.Context, image []byte, mimeType string) (map[string]any, error) {
	resp, err := r.model.GenerateContent(ctx, genai.ImageData(imageFormat(mimeType), image), genai.Text(recognition.Prompt))
	if err != nil {
		return nil, classify(err)
	}
	text := responseText(resp)
	if text == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "vertex generate", fmt.Errorf("empty response"))
	}
	return recognition.Decode(providerName, text)
}

func (r *Recognizer) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func imageFormat(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return "png"
	default:
		return "jpeg"
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, "vertex generate", err)
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return domain.WrapError(domain.ErrRateLimited, "vertex generate", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return domain.WrapError(domain.ErrUnauthorized, "vertex generate", err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return domain.WrapError(domain.ErrTemporary, "vertex generate", err)
	default:
		return fmt.Errorf("vertex generate: %w", err)
	}
}
