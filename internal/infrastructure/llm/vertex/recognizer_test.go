package vertex

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

func TestClassifyMapsGRPCCodes(t *testing.T) {
	cases := map[codes.Code]error{
		codes.ResourceExhausted: domain.ErrRateLimited,
		codes.PermissionDenied:  domain.ErrUnauthorized,
		codes.Unauthenticated:   domain.ErrUnauthorized,
		codes.Unavailable:       domain.ErrTemporary,
	}
	for code, kind := range cases {
		err := classify(status.Error(code, "upstream"))
		if !domain.IsKind(err, kind) {
			t.Fatalf("code %s: got %v, want kind %v", code, err, kind)
		}
	}

	if err := classify(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must pass through, got %v", err)
	}
	if err := classify(status.Error(codes.InvalidArgument, "bad image")); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("invalid argument must not be temporary")
	}
}

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"document_type":`), genai.Text(`"KTP"}`)}},
		}},
	}
	if got := responseText(resp); got != `{"document_type":"KTP"}` {
		t.Fatalf("responseText() = %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Fatalf("responseText(nil) = %q", got)
	}
}

func TestImageFormat(t *testing.T) {
	if imageFormat("image/png") != "png" || imageFormat("image/jpeg") != "jpeg" || imageFormat("") != "jpeg" {
		t.Fatalf("unexpected image formats")
	}
}
