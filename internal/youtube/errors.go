// Package youtube provides an HTTP client for the YouTube Data API v3 with
// automatic retry, error classification and single-page listing. Traversal
// across pages lives in the pager package; this package only knows how to
// fetch one page and report whether more exist.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, youtube.ErrNotFound) to check.
var (
	ErrBadRequest    = errors.New("youtube: bad request")
	ErrUnauthorized  = errors.New("youtube: unauthorized")
	ErrForbidden     = errors.New("youtube: forbidden")
	ErrNotFound      = errors.New("youtube: not found")
	ErrConflict      = errors.New("youtube: conflict")
	ErrQuotaExceeded = errors.New("youtube: quota exceeded")
	ErrThrottled     = errors.New("youtube: throttled")
	ErrServerError   = errors.New("youtube: server error")

	// ErrMalformedPage means a list response lacked a field every page or
	// item must carry.
	ErrMalformedPage = errors.New("youtube: malformed page")

	// ErrTokenUnavailable means the token source could not produce an access
	// token (for example, a refresh token revoked mid-session).
	ErrTokenUnavailable = errors.New("youtube: access token unavailable")
)

// Reasons reported in Google's error payload that change classification.
const (
	reasonQuotaExceeded         = "quotaExceeded"
	reasonDailyLimitExceeded    = "dailyLimitExceeded"
	reasonRateLimitExceeded     = "rateLimitExceeded"
	reasonUserRateLimitExceeded = "userRateLimitExceeded"
)

// APIError is a non-2xx response from the API. It wraps a sentinel error
// and carries the reason string from Google's error payload.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("youtube: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TransportError means the request never produced an HTTP response, after
// all retries were spent.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("youtube: %s %s: transport failure: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transport failure or a server-side
// condition worth retrying later (5xx, throttling). Client errors such as a
// missing permission or an exhausted daily quota are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	return errors.Is(err, ErrServerError) || errors.Is(err, ErrThrottled)
}

// classifyStatus maps an HTTP status code and error reason to a sentinel.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int, reason string) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		switch reason {
		case reasonQuotaExceeded, reasonDailyLimitExceeded:
			return ErrQuotaExceeded
		case reasonRateLimitExceeded, reasonUserRateLimitExceeded:
			return ErrThrottled
		}

		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether a response should be retried by the client.
func isRetryable(code int, reason string) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case http.StatusForbidden:
		return reason == reasonRateLimitExceeded || reason == reasonUserRateLimitExceeded
	default:
		return false
	}
}
