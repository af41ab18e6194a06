package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/happycod3r/ytapi/internal/auth"
)

// Retry and backoff constants.
const (
	defaultMaxRetries = 3
	baseBackoff       = 1 * time.Second
	maxBackoff        = 60 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
	defaultUserAgent  = "ytapi/0.1"
)

// googleAPIRoot is the discovery root every Google REST API hangs off.
const googleAPIRoot = "https://www.googleapis.com"

// DefaultBaseURL is the YouTube Data API v3 root.
var DefaultBaseURL = BaseURL("youtube", "v3")

// BaseURL binds an API name and version to its REST root.
func BaseURL(apiName, apiVersion string) string {
	return googleAPIRoot + "/" + apiName + "/" + apiVersion
}

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per
// "accept interfaces, return structs"; session provides the implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the YouTube Data API.
// It handles request construction, authentication, retry with
// exponential backoff, and error classification.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Tests override it to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithMaxRetries sets how many times a transport failure or retryable status
// is retried before giving up. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a YouTube API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:    baseURL,
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		sleepFunc:  timeSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API root the client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes an HTTP request against the API. The path (including any
// query string) is appended to the client's base URL. The caller closes the
// response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + path

	// Buffer the body so every attempt sends the full payload.
	var payload []byte

	if body != nil {
		var err error

		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("youtube: reading request body: %w", err)
		}
	}

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("youtube: request canceled: %w", ctx.Err())
			}

			// A refused grant needs a new login; anything else kept the
			// token endpoint from answering and is a transport failure.
			if isTokenError(err) {
				if auth.GrantRejected(err) {
					return nil, err
				}

				return nil, &TransportError{Method: method, Path: path, Err: err}
			}

			if attempt < c.maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("youtube: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, &TransportError{Method: method, Path: path, Err: err}
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		reason, message := parseErrorBody(errBody)

		if isRetryable(resp.StatusCode, reason) && attempt < c.maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.String("reason", reason),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("youtube: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Reason:     reason,
			Message:    message,
			Err:        classifyStatus(resp.StatusCode, reason),
		}
	}
}

// tokenError marks a failure to obtain a bearer token so Do does not retry
// it as if it were a network error.
type tokenError struct{ err error }

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func isTokenError(err error) bool {
	_, ok := err.(*tokenError) //nolint:errorlint // doOnce returns it unwrapped
	return ok
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, &tokenError{err: fmt.Errorf("%w: %w", ErrTokenUnavailable, err)}
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// googleErrorBody mirrors Google's JSON error envelope.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
			Domain  string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

// parseErrorBody extracts the first reason and the message from an error
// response. Non-JSON bodies are returned verbatim as the message.
func parseErrorBody(body []byte) (reason, message string) {
	var ge googleErrorBody
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Message == "" {
		return "", string(body)
	}

	if len(ge.Error.Errors) > 0 {
		reason = ge.Error.Errors[0].Reason
	}

	return reason, ge.Error.Message
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
