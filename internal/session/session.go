package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/happycod3r/ytapi/internal/credential"
	"github.com/happycod3r/ytapi/internal/youtube"
)

// Metadata keys cached next to the credential after a successful Verify.
const (
	MetaChannelID    = "channel_id"
	MetaChannelTitle = "channel_title"
)

// Session is an authenticated handle bound to one client identity. It is
// safe for concurrent use.
type Session struct {
	Name       string
	APIName    string
	APIVersion string
	Client     *youtube.Client

	tokens *persistingSource
	store  credential.Store
	logger *slog.Logger
}

// Credential returns a copy of the credential currently backing the session.
// It changes when the access token is silently refreshed mid-process.
func (s *Session) Credential() credential.Credential {
	return s.tokens.current()
}

// Verify probes the API with the session's credential by resolving the
// user's own channel. API errors (4xx) and transport errors are returned
// as-is so youtube.IsTransient can tell them apart. On success the channel
// identity is cached in the store's metadata when the store supports it.
func (s *Session) Verify(ctx context.Context) (*youtube.Channel, error) {
	ch, err := s.Client.MyChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("session %q: verify: %w", s.Name, err)
	}

	if ms, ok := s.store.(credential.MetaStore); ok {
		meta := map[string]string{
			MetaChannelID:    ch.ID,
			MetaChannelTitle: ch.Title,
		}

		if err := ms.SaveMeta(meta); err != nil {
			s.logger.Warn("failed to cache channel metadata",
				slog.String("client", s.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	return ch, nil
}

// persistingSource hands access tokens to the youtube client and writes any
// token the oauth2 library refreshed on its own back to the store.
type persistingSource struct {
	name   string
	src    oauth2.TokenSource
	store  credential.Store
	logger *slog.Logger

	mu   sync.Mutex
	cred *credential.Credential
}

func newPersistingSource(
	name string, src oauth2.TokenSource, store credential.Store, cred *credential.Credential, logger *slog.Logger,
) *persistingSource {
	return &persistingSource{name: name, src: src, store: store, cred: cred, logger: logger}
}

// Token implements youtube.TokenSource.
func (p *persistingSource) Token() (string, error) {
	tok, err := p.src.Token()
	if err != nil {
		p.logger.Warn("token acquisition failed",
			slog.String("client", p.name),
			slog.String("error", err.Error()),
		)

		return "", fmt.Errorf("session %q: obtaining token: %w", p.name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.cred.AccessToken {
		return tok.AccessToken, nil
	}

	p.cred = p.cred.Merge(tok)

	p.logger.Info("token refreshed by oauth2 library",
		slog.String("client", p.name),
		slog.Time("new_expiry", tok.Expiry),
	)

	if err := p.store.Save(p.cred); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("client", p.name),
			slog.String("error", err.Error()),
		)
	}

	return tok.AccessToken, nil
}

func (p *persistingSource) current() credential.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	return *p.cred
}
