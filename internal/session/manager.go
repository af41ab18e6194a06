// Package session owns the authenticated client handle. A Manager turns a
// client configuration into a ready-to-use Session, going through the stored
// credential first, then a single silent refresh, and only then an
// interactive consent flow. Sessions are cached per client name until
// invalidated.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/happycod3r/ytapi/internal/auth"
	"github.com/happycod3r/ytapi/internal/credential"
	"github.com/happycod3r/ytapi/internal/youtube"
)

// Default API coordinates.
const (
	DefaultAPIName    = "youtube"
	DefaultAPIVersion = "v3"
)

// ClientConfig identifies one client identity and the API it talks to.
type ClientConfig struct {
	// Name keys the session cache and the credential slot.
	Name string
	// OAuth carries the client ID, secret, endpoints and requested scopes,
	// typically from auth.LoadClientSecrets.
	OAuth      *oauth2.Config
	APIName    string
	APIVersion string
	// BaseURL overrides the URL derived from APIName and APIVersion.
	BaseURL string
}

func (cc ClientConfig) apiName() string {
	if cc.APIName == "" {
		return DefaultAPIName
	}

	return cc.APIName
}

func (cc ClientConfig) apiVersion() string {
	if cc.APIVersion == "" {
		return DefaultAPIVersion
	}

	return cc.APIVersion
}

func (cc ClientConfig) baseURL() string {
	if cc.BaseURL != "" {
		return cc.BaseURL
	}

	return youtube.BaseURL(cc.apiName(), cc.apiVersion())
}

// StoreFunc returns the credential store slot for a client name.
type StoreFunc func(name string) credential.Store

// Option configures a Manager.
type Option func(*Manager)

// WithFlow sets the interactive consent flow. Without one, a missing or
// unrefreshable credential is an error.
func WithFlow(f auth.Flow) Option {
	return func(m *Manager) { m.flow = f }
}

// WithHTTPClient sets the client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithAuthHTTPClient sets the client used to talk to the token endpoint.
func WithAuthHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.authClient = c }
}

// WithClientOptions passes options through to every youtube.Client.
func WithClientOptions(opts ...youtube.Option) Option {
	return func(m *Manager) { m.clientOpts = append(m.clientOpts, opts...) }
}

// Manager creates and caches Sessions.
type Manager struct {
	stores     StoreFunc
	flow       auth.Flow
	httpClient *http.Client
	authClient *http.Client
	clientOpts []youtube.Option
	logger     *slog.Logger
	nowFunc    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	group    singleflight.Group
}

// NewManager creates a Manager reading credentials from stores.
func NewManager(stores StoreFunc, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		stores:     stores,
		httpClient: http.DefaultClient,
		logger:     logger,
		nowFunc:    time.Now,
		sessions:   make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Session returns the cached session for cc.Name, establishing it first if
// needed. Concurrent calls for the same name share one establishment, so a
// refresh token is redeemed at most once.
func (m *Manager) Session(ctx context.Context, cc ClientConfig) (*Session, error) {
	if cc.Name == "" {
		return nil, errors.New("session: client name is required")
	}

	if cc.OAuth == nil {
		return nil, fmt.Errorf("session %q: no OAuth client configuration", cc.Name)
	}

	if s := m.cached(cc.Name); s != nil {
		return s, nil
	}

	v, err, shared := m.group.Do(cc.Name, func() (any, error) {
		if s := m.cached(cc.Name); s != nil {
			return s, nil
		}

		s, err := m.establish(ctx, cc)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[cc.Name] = s
		m.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		m.logger.Debug("joined in-flight session setup", slog.String("client", cc.Name))
	}

	return v.(*Session), nil
}

// Invalidate drops the cached session so the next Session call reloads the
// credential from the store.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, name)
}

// Logout invalidates the session and removes the stored credential. It is
// the only path that destroys a credential.
func (m *Manager) Logout(name string) error {
	m.Invalidate(name)

	store := m.stores(name)
	if !store.Exists() {
		m.logger.Info("logout: no stored credential", slog.String("client", name))
		return nil
	}

	if err := store.Remove(); err != nil {
		return fmt.Errorf("session %q: removing credential: %w", name, err)
	}

	m.logger.Info("logout: removed stored credential", slog.String("client", name))

	return nil
}

func (m *Manager) cached(name string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessions[name]
}

// establish runs the credential lifecycle: stored → refresh → consent.
func (m *Manager) establish(ctx context.Context, cc ClientConfig) (*Session, error) {
	logger := m.logger.With(slog.String("client", cc.Name))
	store := m.stores(cc.Name)

	cred, ok := store.Load()
	if ok && !cred.CoversScopes(cc.OAuth.Scopes) {
		logger.Info("stored credential lacks requested scopes, consent required",
			slog.Any("granted", cred.Scopes),
			slog.Any("requested", cc.OAuth.Scopes),
		)

		ok = false
	}

	var refreshErr error

	if ok {
		status := cred.Status(m.nowFunc())
		logger.Debug("loaded stored credential", slog.String("status", status.String()))

		switch {
		case status == credential.StatusValid:
			return m.bind(cc, store, cred, logger), nil

		case status == credential.StatusExpired && cred.CanRefresh():
			refreshed, err := m.refresh(ctx, cc, cred)
			if err == nil {
				logger.Info("credential refreshed", slog.Time("expiry", refreshed.Expiry))
				m.persist(store, refreshed, logger)

				return m.bind(cc, store, refreshed, logger), nil
			}

			if !auth.GrantRejected(err) {
				return nil, &AuthenticationError{Client: cc.Name, Reason: ReasonNetwork, Err: err}
			}

			logger.Warn("refresh token rejected, consent required", slog.String("error", err.Error()))
			refreshErr = err
		}
	}

	if m.flow == nil {
		if refreshErr != nil {
			return nil, &AuthenticationError{Client: cc.Name, Reason: ReasonRefreshFailed, Err: refreshErr}
		}

		return nil, &AuthenticationError{Client: cc.Name, Reason: ReasonNoCredential}
	}

	logger.Info("requesting interactive consent")

	tok, err := m.flow.Consent(m.authContext(ctx), cc.OAuth)
	if err != nil {
		return nil, &AuthenticationError{Client: cc.Name, Reason: consentReason(err), Err: err}
	}

	fresh := credential.FromToken(tok, cc.OAuth.Scopes)
	logger.Info("consent granted", slog.Time("expiry", fresh.Expiry))
	m.persist(store, fresh, logger)

	return m.bind(cc, store, fresh, logger), nil
}

// refresh makes exactly one refresh-token grant. The access token is left
// out so the oauth2 library refreshes regardless of its own clock.
func (m *Manager) refresh(ctx context.Context, cc ClientConfig, cred *credential.Credential) (*credential.Credential, error) {
	src := cc.OAuth.TokenSource(m.authContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, err
	}

	return cred.Merge(tok), nil
}

// persist saves cred; a failure is logged and the session continues in memory.
func (m *Manager) persist(store credential.Store, cred *credential.Credential, logger *slog.Logger) {
	if err := store.Save(cred); err != nil {
		logger.Warn("failed to persist credential, continuing in memory", slog.String("error", err.Error()))
	}
}

// bind builds the Session around a valid credential.
func (m *Manager) bind(cc ClientConfig, store credential.Store, cred *credential.Credential, logger *slog.Logger) *Session {
	// Later refreshes happen inside API calls, long after the caller's
	// context is gone.
	src := cc.OAuth.TokenSource(m.authContext(context.Background()), cred.Token())
	tokens := newPersistingSource(cc.Name, src, store, cred, logger)

	client := youtube.NewClient(cc.baseURL(), m.httpClient, tokens, logger, m.clientOpts...)

	logger.Info("session ready",
		slog.String("api", cc.apiName()+"/"+cc.apiVersion()),
		slog.Time("expiry", cred.Expiry),
	)

	return &Session{
		Name:       cc.Name,
		APIName:    cc.apiName(),
		APIVersion: cc.apiVersion(),
		Client:     client,
		tokens:     tokens,
		store:      store,
		logger:     logger,
	}
}

// authContext routes token endpoint traffic through the auth HTTP client.
func (m *Manager) authContext(ctx context.Context) context.Context {
	if m.authClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, m.authClient)
}
