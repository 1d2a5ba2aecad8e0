package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// StatusError reads a bounded part of the body and tags the error with the
// domain kind matching the status code.
func StatusError(provider, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := &HTTPStatusError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
	return domain.WrapError(KindForStatus(resp.StatusCode), provider+" "+operation, statusErr)
}

func KindForStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrUnauthorized
	case code == http.StatusRequestTimeout || code >= 500:
		return domain.ErrTemporary
	default:
		return domain.ErrExtraction
	}
}

// TransportError classifies a failed round trip. Cancellation is passed
// through untouched so callers can tell it apart.
func TransportError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, provider+" "+operation, err)
	}
	return fmt.Errorf("%s %s request: %w", provider, operation, err)
}
