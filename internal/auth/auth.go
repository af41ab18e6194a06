// Package auth implements the interactive half of OAuth2: obtaining a brand
// new grant from the user. Two flows are provided. BrowserFlow runs the
// authorization code flow with PKCE against a loopback redirect, the usual
// path for installed applications. DeviceFlow shows a user code for
// machines without a browser.
//
// Neither flow persists anything. The caller (the session manager) decides
// where the resulting token goes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes understood by the YouTube Data API.
const (
	ScopeForceSSL = "https://www.googleapis.com/auth/youtube.force-ssl"
	ScopeReadOnly = "https://www.googleapis.com/auth/youtube.readonly"
	ScopeManage   = "https://www.googleapis.com/auth/youtube"
)

// DefaultScopes is used when a client configuration names none.
var DefaultScopes = []string{ScopeForceSSL}

// ErrConsentDenied is returned when the user declines the authorization
// request.
var ErrConsentDenied = errors.New("auth: consent denied")

// ErrCallbackRejected is returned when the authorization redirect cannot be
// accepted: a state mismatch, a provider error or a missing code.
var ErrCallbackRejected = errors.New("auth: authorization callback rejected")

// errorAccessDenied is the OAuth2 error code for a declined grant.
const errorAccessDenied = "access_denied"

// Flow obtains a fresh token by asking the user for consent. Implementations
// block until the user answers or ctx is canceled.
type Flow interface {
	Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// LoadClientSecrets reads a Google client_secret.json descriptor (either the
// "installed" or "web" variant) and returns an oauth2.Config for scopes.
func LoadClientSecrets(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading client secrets: %w", err)
	}

	return ParseClientSecrets(data, scopes)
}

// ParseClientSecrets is LoadClientSecrets for an in-memory descriptor.
func ParseClientSecrets(data []byte, scopes []string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing client secrets: %w", err)
	}

	// The descriptor carries no device endpoint.
	if cfg.Endpoint.DeviceAuthURL == "" {
		cfg.Endpoint.DeviceAuthURL = google.Endpoint.DeviceAuthURL
	}

	return cfg, nil
}

// GrantRejected reports whether err is the token endpoint refusing a grant
// (revoked refresh token, bad code, unknown client). RetrieveError is
// returned for any non-2xx reply, so 5xx and 429 are outages rather than
// refusals and report false, as does any error without a response.
func GrantRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}

	if re.Response == nil {
		return re.ErrorCode != ""
	}

	status := re.Response.StatusCode

	return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}

// consentError maps a token endpoint refusal of type access_denied onto
// ErrConsentDenied and wraps everything else with the given operation.
func consentError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == errorAccessDenied {
		return fmt.Errorf("%w: %s", ErrConsentDenied, re.ErrorDescription)
	}

	return fmt.Errorf("auth: %s: %w", op, err)
}

// withoutRedirect returns a shallow copy of cfg the flow may mutate.
func withoutRedirect(cfg *oauth2.Config) *oauth2.Config {
	c := *cfg
	c.RedirectURL = ""

	return &c
}
