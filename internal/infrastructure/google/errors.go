package google

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

// classifyAPIError maps a Google API failure onto a domain kind.
func classifyAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return domain.WrapError(domain.ErrRateLimited, op, err)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return domain.WrapError(domain.ErrUnauthorized, op, err)
	case apiErr.Code >= 500:
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return domain.WrapError(domain.ErrStorage, op, err)
	}
}

func classifyRetry(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrRateLimited):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffExponential}
	case domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Backoff: resilience.BackoffExponential}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
}

func run(ctx context.Context, executor *resilience.Executor, op string, fn func(context.Context) error) error {
	if executor == nil {
		return fn(ctx)
	}
	return executor.Execute(ctx, op, fn, classifyRetry)
}

// runOnce is run for writes that are not idempotent. A lost reply to a
// committed append would otherwise produce a second row. Failures still
// count towards the breaker.
func runOnce(ctx context.Context, executor *resilience.Executor, op string, fn func(context.Context) error) error {
	if executor == nil {
		return fn(ctx)
	}
	return executor.Execute(ctx, op, fn, func(err error) resilience.ErrorClassification {
		class := classifyRetry(err)
		class.Retryable = false
		return class
	})
}
