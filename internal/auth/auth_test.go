package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// testTokenJSON is the canonical token response for tests.
const testTokenJSON = `{
	"access_token": "test-access-token",
	"token_type": "Bearer",
	"refresh_token": "test-refresh-token",
	"expires_in": 3600,
	"scope": "https://www.googleapis.com/auth/youtube.force-ssl"
}`

// testDeviceCodeJSON uses interval=1 to keep polling fast.
const testDeviceCodeJSON = `{
	"device_code": "test-device-code",
	"user_code": "ABCD-1234",
	"verification_uri": "https://www.google.com/device",
	"expires_in": 900,
	"interval": 1
}`

const testClientSecrets = `{
	"installed": {
		"client_id": "123.apps.googleusercontent.com",
		"client_secret": "shh",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["http://localhost"]
	}
}`

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// newMockOAuthServer serves the authorize, device code and token endpoints.
// The authorize endpoint redirects to the callback with authorizeQuery merged
// into the redirect; state is echoed unless authorizeQuery sets it.
func newMockOAuthServer(t *testing.T, authorizeQuery url.Values, tokenHandler http.HandlerFunc) *oauth2.Config {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /authorize", func(w http.ResponseWriter, r *http.Request) {
		q := url.Values{"state": {r.URL.Query().Get("state")}}
		for k, v := range authorizeQuery {
			q[k] = v
		}

		http.Redirect(w, r, r.URL.Query().Get("redirect_uri")+"?"+q.Encode(), http.StatusFound)
	})

	mux.HandleFunc("POST /devicecode", jsonHandler(http.StatusOK, testDeviceCodeJSON))

	if tokenHandler == nil {
		tokenHandler = jsonHandler(http.StatusOK, testTokenJSON)
	}

	mux.HandleFunc("POST /token", tokenHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       DefaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       srv.URL + "/authorize",
			DeviceAuthURL: srv.URL + "/devicecode",
			TokenURL:      srv.URL + "/token",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// simulateBrowser acts as the browser: it fetches the auth URL and follows
// the redirect to the loopback callback server.
func simulateBrowser(t *testing.T) func(string) error {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return func(authURL string) error {
		resp, err := client.Get(authURL) //nolint:noctx // test helper
		if err != nil {
			return err
		}
		resp.Body.Close()

		location := resp.Header.Get("Location")
		if location == "" {
			return errors.New("authorize endpoint did not redirect")
		}

		callbackResp, err := http.Get(location) //nolint:noctx // test helper
		if err != nil {
			return err
		}
		callbackResp.Body.Close()

		return nil
	}
}

func TestParseClientSecrets(t *testing.T) {
	cfg, err := ParseClientSecrets([]byte(testClientSecrets), nil)
	require.NoError(t, err)

	assert.Equal(t, "123.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, "shh", cfg.ClientSecret)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.Endpoint.TokenURL)
	assert.Equal(t, google.Endpoint.DeviceAuthURL, cfg.Endpoint.DeviceAuthURL)
}

func TestParseClientSecrets_CustomScopes(t *testing.T) {
	cfg, err := ParseClientSecrets([]byte(testClientSecrets), []string{ScopeReadOnly})
	require.NoError(t, err)
	assert.Equal(t, []string{ScopeReadOnly}, cfg.Scopes)
}

func TestParseClientSecrets_Invalid(t *testing.T) {
	_, err := ParseClientSecrets([]byte(`{"neither": {}}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing client secrets")
}

func TestLoadClientSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientSecrets), 0o600))

	cfg, err := LoadClientSecrets(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "123.apps.googleusercontent.com", cfg.ClientID)

	_, err = LoadClientSecrets(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBrowserFlow_Success(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"code": {"test-auth-code"}}, nil)
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	tok, err := flow.Consent(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok.AccessToken)
	assert.Equal(t, "test-refresh-token", tok.RefreshToken)
	assert.Equal(t, ScopeForceSSL, tok.Extra("scope"))

	assert.Empty(t, cfg.RedirectURL, "caller's config must not be mutated")
}

func TestBrowserFlow_SendsPKCEAndLoopbackRedirect(t *testing.T) {
	var authURL *url.URL

	cfg := newMockOAuthServer(t, url.Values{"code": {"c"}}, nil)
	browser := simulateBrowser(t)
	flow := &BrowserFlow{OpenURL: func(u string) error {
		var err error
		authURL, err = url.Parse(u)
		require.NoError(t, err)

		return browser(u)
	}}

	_, err := flow.Consent(context.Background(), cfg)
	require.NoError(t, err)

	q := authURL.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Contains(t, q.Get("redirect_uri"), "http://127.0.0.1:")
}

func TestBrowserFlow_AccessDenied(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"error": {"access_denied"}}, nil)
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	_, err := flow.Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestBrowserFlow_OtherAuthorizationError(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"error": {"invalid_scope"}}, nil)
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	_, err := flow.Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConsentDenied)
	assert.ErrorIs(t, err, ErrCallbackRejected)
	assert.Contains(t, err.Error(), "invalid_scope")
}

func TestBrowserFlow_InvalidState(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"code": {"c"}, "state": {"wrong-state-value"}}, nil)
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	_, err := flow.Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallbackRejected)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestBrowserFlow_MissingCode(t *testing.T) {
	cfg := newMockOAuthServer(t, nil, nil)
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	_, err := flow.Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallbackRejected)
	assert.Contains(t, err.Error(), "missing authorization code")
}

func TestBrowserFlow_ExchangeError(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"code": {"c"}},
		jsonHandler(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code expired"}`))
	flow := &BrowserFlow{OpenURL: simulateBrowser(t)}

	_, err := flow.Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")

	var re *oauth2.RetrieveError
	assert.ErrorAs(t, err, &re)
	assert.True(t, GrantRejected(err))
}

func TestBrowserFlow_ContextCancel(t *testing.T) {
	cfg := newMockOAuthServer(t, nil, nil)
	flow := &BrowserFlow{OpenURL: func(string) error { return nil }}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := flow.Consent(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "browser consent canceled")
}

func TestBrowserFlow_OpenURLFailsPrintsURL(t *testing.T) {
	cfg := newMockOAuthServer(t, url.Values{"code": {"c"}}, nil)
	browser := simulateBrowser(t)

	var out bytes.Buffer
	flow := &BrowserFlow{
		Out: &out,
		OpenURL: func(u string) error {
			go func() { _ = browser(u) }()
			return errors.New("no browser")
		},
	}

	tok, err := flow.Consent(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok.AccessToken)
	assert.Contains(t, out.String(), "Open this URL in your browser")
	assert.Contains(t, out.String(), "/authorize?")
}

func TestDeviceFlow_Success(t *testing.T) {
	cfg := newMockOAuthServer(t, nil, nil)

	var shown DeviceCode
	flow := &DeviceFlow{Display: func(dc DeviceCode) { shown = dc }}

	tok, err := flow.Consent(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok.AccessToken)
	assert.Equal(t, "ABCD-1234", shown.UserCode)
	assert.Equal(t, "https://www.google.com/device", shown.VerificationURI)
}

func TestDeviceFlow_Declined(t *testing.T) {
	cfg := newMockOAuthServer(t, nil,
		jsonHandler(http.StatusBadRequest, `{"error":"access_denied","error_description":"user declined"}`))

	_, err := (&DeviceFlow{}).Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConsentDenied)
	assert.Contains(t, err.Error(), "user declined")
}

func TestDeviceFlow_ExpiredCode(t *testing.T) {
	cfg := newMockOAuthServer(t, nil,
		jsonHandler(http.StatusBadRequest, `{"error":"expired_token","error_description":"device code expired"}`))

	_, err := (&DeviceFlow{}).Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConsentDenied)
	assert.Contains(t, err.Error(), "expired_token")
}

func TestDeviceFlow_DeviceAuthError(t *testing.T) {
	cfg := newMockOAuthServer(t, nil, nil)
	cfg.Endpoint.DeviceAuthURL = cfg.Endpoint.TokenURL + "/nope"

	_, err := (&DeviceFlow{}).Consent(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device auth request failed")
}

func TestGenerateState(t *testing.T) {
	state1, err := generateState()
	require.NoError(t, err)
	assert.Len(t, state1, stateTokenBytes*2)

	state2, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, state1, state2)
}

func TestGrantRejected(t *testing.T) {
	reply := func(status int) *http.Response { return &http.Response{StatusCode: status} }

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid grant", &oauth2.RetrieveError{Response: reply(http.StatusBadRequest), ErrorCode: "invalid_grant"}, true},
		{"unauthorized client", &oauth2.RetrieveError{Response: reply(http.StatusUnauthorized)}, true},
		{"wrapped", fmt.Errorf("refreshing: %w", &oauth2.RetrieveError{Response: reply(http.StatusBadRequest)}), true},
		{"no response with code", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{"service unavailable", &oauth2.RetrieveError{Response: reply(http.StatusServiceUnavailable)}, false},
		{"server error with oauth body", &oauth2.RetrieveError{Response: reply(http.StatusInternalServerError), ErrorCode: "internal_failure"}, false},
		{"throttled", &oauth2.RetrieveError{Response: reply(http.StatusTooManyRequests)}, false},
		{"no response no code", &oauth2.RetrieveError{}, false},
		{"transport", errors.New("dial tcp: connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrantRejected(tt.err))
		})
	}
}
