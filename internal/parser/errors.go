package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"dealscope/internal/domain"
)

// ErrUnsupportedContentType is returned when a provider cannot accept a document's mime type.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// UnavailableError indicates a provider timed out or answered with a server error.
type UnavailableError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s unavailable (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// MalformedResponseError indicates the provider answered but the model output was not the
// requested JSON envelope.
type MalformedResponseError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned malformed output: %v (raw: %s)", e.Provider, e.Err, truncate(e.Raw, 500))
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// StatusError converts a non-200 provider response into the matching error class.
func StatusError(provider string, resp *http.Response, body []byte) error {
	baseErr := fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, truncate(string(body), 500))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, baseErr, ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return &UnavailableError{Provider: provider, StatusCode: resp.StatusCode, Err: baseErr}
	default:
		return baseErr
	}
}

// CallError wraps an HTTP transport failure. Network errors and deadlines become UnavailableError.
func CallError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("calling %s API: %w", provider, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return &UnavailableError{Provider: provider, Err: err}
	}
	return fmt.Errorf("calling %s API: %w", provider, err)
}

// Classify maps any provider error to an explicit error kind.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindNone
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrorKindCancelled
	}
	var (
		rlErr  *RateLimitError
		unErr  *UnavailableError
		malErr *MalformedResponseError
		netErr net.Error
	)
	switch {
	case errors.As(err, &rlErr), errors.As(err, &unErr):
		return domain.ErrorKindTransient
	case errors.As(err, &malErr):
		return domain.ErrorKindMalformed
	case errors.Is(err, ErrUnsupportedContentType):
		return domain.ErrorKindPermanent
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return domain.ErrorKindTransient
	}
	return domain.ErrorKindPermanent
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
