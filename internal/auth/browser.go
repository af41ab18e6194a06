package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the path the authorization server redirects to on the
// loopback listener.
const callbackPath = "/"

// shutdownTimeout bounds how long the callback server gets to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// BrowserFlow runs the authorization code + PKCE flow on a loopback redirect:
//  1. Binds an HTTP server on 127.0.0.1 with a random port
//  2. Opens the browser at the authorization URL
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for a token using the PKCE verifier
type BrowserFlow struct {
	// OpenURL launches a browser. When nil or failing, the URL is printed to
	// Out so the user can open it by hand.
	OpenURL func(string) error
	// Out receives the fallback URL. Defaults to os.Stderr.
	Out    io.Writer
	Logger *slog.Logger
}

// Consent implements Flow.
func (f *BrowserFlow) Consent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	logger := f.logger()
	cfg := withoutRedirect(base)

	logger.Info("starting browser consent flow")

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resultCh)
	})

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	f.launchBrowser(authURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, consentError("token exchange failed", err)
	}

	logger.Info("browser consent successful", slog.Time("expiry", tok.Expiry))

	return tok, nil
}

func (f *BrowserFlow) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}

	return f.Logger
}

// startCallbackServer binds to 127.0.0.1:0 and serves mux on it.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("auth: binding loopback listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("auth: listener address is not TCP")
	}

	logger.Info("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("auth: callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, tcpAddr.Port, nil
}

// handleCallback validates the state, extracts the code, and reports the
// first outcome. Later hits (browser retries, favicon) are answered but
// dropped.
func handleCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	var result callbackResult

	switch {
	case q.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		result.err = fmt.Errorf("%w: OAuth2 state mismatch (possible CSRF)", ErrCallbackRejected)
	case q.Get("error") == errorAccessDenied:
		http.Error(w, "Authorization was declined", http.StatusForbidden)
		result.err = fmt.Errorf("%w: %s", ErrConsentDenied, q.Get("error_description"))
	case q.Get("error") != "":
		http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
		result.err = fmt.Errorf("%w: authorization failed: %s: %s", ErrCallbackRejected, q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		result.err = fmt.Errorf("%w: missing authorization code", ErrCallbackRejected)
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")
		result.code = q.Get("code")
	}

	select {
	case resultCh <- result:
	default:
	}
}

func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser opens authURL, falling back to printing it.
func (f *BrowserFlow) launchBrowser(authURL string, logger *slog.Logger) {
	out := f.Out
	if out == nil {
		out = os.Stderr
	}

	if f.OpenURL == nil {
		fmt.Fprintf(out, "Open this URL in your browser:\n%s\n", authURL)
		return
	}

	logger.Info("opening browser for authorization")

	if err := f.OpenURL(authURL); err != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", err.Error()))
		fmt.Fprintf(out, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or ctx is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("auth: browser consent canceled: %w", ctx.Err())
	}
}

// generateState returns a random hex string for the OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
