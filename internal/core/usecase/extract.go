package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/ports"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/validation"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

type ExtractDocumentUseCase struct {
	recognizer ports.Recognizer
	executor   *resilience.Executor
	timeout    time.Duration
	metrics    ports.IntakeMetrics
	now        func() time.Time
}

func NewExtractDocumentUseCase(
	recognizer ports.Recognizer,
	executor *resilience.Executor,
	timeout time.Duration,
	metrics ports.IntakeMetrics,
) *ExtractDocumentUseCase {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExtractDocumentUseCase{
		recognizer: recognizer,
		executor:   executor,
		timeout:    timeout,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Extract runs the recognizer with retries and turns its answer into a
// record. Validation problems become warnings, not errors.
func (uc *ExtractDocumentUseCase) Extract(ctx context.Context, image []byte, mimeType string) (*domain.Record, error) {
	provider := uc.recognizer.Name()
	started := uc.now()

	var rec *domain.Record
	attempts, err := uc.executor.ExecuteCounted(ctx, "recognize_"+provider, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
		defer cancel()

		raw, err := uc.recognizer.Recognize(callCtx, image, mimeType)
		if err != nil {
			return err
		}
		parsed, err := recordFromResponse(raw)
		if err != nil {
			return err
		}
		rec = parsed
		return nil
	}, classifyExtractionError)

	elapsed := uc.now().Sub(started).Seconds()
	if err != nil {
		uc.observe(provider, "failed", elapsed)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		slog.Error("extraction_failed", "provider", provider, "attempts", attempts, "error", err)
		return nil, &domain.ExtractionError{Provider: provider, Attempts: attempts, Err: err}
	}

	rec.Provenance.Source = provider
	rec.Provenance.ExtractedAt = uc.now().UTC()
	rec.Warnings = validation.ValidateRecord(rec)

	uc.observe(provider, "success", elapsed)
	slog.Info("extraction_completed",
		"provider", provider,
		"kind", rec.Kind(),
		"attempts", attempts,
		"warnings", len(rec.Warnings),
	)
	return rec, nil
}

func (uc *ExtractDocumentUseCase) observe(provider, outcome string, seconds float64) {
	if uc.metrics != nil {
		uc.metrics.ObserveExtraction(provider, outcome, seconds)
	}
}

// classifyExtractionError backs off exponentially on rate limits, never
// retries auth failures and pauses briefly before any other retry.
func classifyExtractionError(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrUnauthorized):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	case domain.IsKind(err, domain.ErrRateLimited):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffExponential}
	case domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffFixed}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false, Backoff: resilience.BackoffFixed}
	}
}

var responseAliases = map[string][]string{
	"kind":        {"document_type", "kind"},
	"name":        {"nama", "name"},
	"address":     {"alamat", "address"},
	"national_id": {"nik", "national_id"},
	"tax_id_15":   {"npwp_15", "tax_id_15"},
	"tax_id_16":   {"npwp_16", "tax_id_16"},
}

func lookup(raw map[string]any, key string) string {
	for _, alias := range responseAliases[key] {
		if v := scalarString(raw[alias]); v != "" {
			return v
		}
	}
	return ""
}

// recordFromResponse maps a recognizer answer onto a record. Numbers are
// repaired to their fixed widths; unusable numbers are left empty.
func recordFromResponse(raw map[string]any) (*domain.Record, error) {
	kind, err := domain.ParseKind(lookup(raw, "kind"))
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "map recognizer response", err)
	}
	name := lookup(raw, "name")
	if name == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "map recognizer response", fmt.Errorf("empty name"))
	}
	address := lookup(raw, "address")

	var rec *domain.Record
	switch kind {
	case domain.KindNationalID:
		rec = domain.NewNationalIDRecord(name, address, validation.RepairDigits(lookup(raw, "national_id"), 16))
	default:
		rec = domain.NewTaxRecord(name, address,
			validation.RepairDigits(lookup(raw, "tax_id_15"), 15),
			validation.RepairDigits(lookup(raw, "tax_id_16"), 16),
		)
	}

	switch v := raw["confidence"].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			rec.Provenance.Confidence = f
		}
	case float64:
		rec.Provenance.Confidence = v
	}
	return rec, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
