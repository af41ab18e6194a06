// Package credential holds the OAuth2 credential type and the stores that
// persist it between process runs. A credential's validity is never stored:
// it is recomputed from the expiry every time it is asked for, so a record
// read back from disk is never trusted just because it deserialized.
//
// Two Store implementations exist: FileStore (one JSON file per client
// identity, written atomically) and SQLiteStore (one row per client identity
// in a goose-migrated SQLite database). Both fail softly on load.
package credential

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew treats tokens that expire within this window as already expired,
// so a request started right after Session() does not race the expiry.
const expirySkew = 10 * time.Second

// Status is the derived validity state of a Credential.
type Status int

const (
	// StatusValid means the access token is present and not expired.
	StatusValid Status = iota
	// StatusMissing means there is no usable access token at all.
	StatusMissing
	// StatusExpired means the access token's expiry has passed.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Credential is the token bundle granting delegated access to a user's
// account. Zero Expiry means the access token does not expire.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Status computes validity at the given instant.
func (c *Credential) Status(now time.Time) Status {
	if c == nil || c.AccessToken == "" {
		return StatusMissing
	}

	if !c.Expiry.IsZero() && !now.Add(expirySkew).Before(c.Expiry) {
		return StatusExpired
	}

	return StatusValid
}

// Valid reports whether Status(now) is StatusValid.
func (c *Credential) Valid(now time.Time) bool {
	return c.Status(now) == StatusValid
}

// CanRefresh reports whether a refresh token is available.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// CoversScopes reports whether every scope in want was granted. A credential
// with no recorded scopes is assumed to cover whatever it was issued for.
func (c *Credential) CoversScopes(want []string) bool {
	if c == nil {
		return false
	}

	if len(c.Scopes) == 0 {
		return true
	}

	for _, s := range want {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}

	return true
}

// Token converts the credential into an oauth2.Token for use with an
// oauth2.Config token source.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// FromToken builds a Credential from a token returned by the authorization
// server. Google reports granted scopes in the "scope" extra field; when it
// is absent the requested scopes are recorded instead.
func FromToken(tok *oauth2.Token, requested []string) *Credential {
	scopes := requested

	if raw, ok := tok.Extra("scope").(string); ok && raw != "" {
		scopes = strings.Fields(raw)
	}

	return &Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scopes:       slices.Clone(scopes),
	}
}

// Merge returns a copy of c updated with a refreshed token. Google omits the
// refresh token from refresh responses, so the previous one is carried over.
func (c *Credential) Merge(tok *oauth2.Token) *Credential {
	next := FromToken(tok, c.Scopes)
	if next.RefreshToken == "" {
		next.RefreshToken = c.RefreshToken
	}

	return next
}

// Store persists at most one Credential in a named slot. Load never fails
// loudly: a missing, unreadable or malformed slot yields (nil, false).
type Store interface {
	Load() (*Credential, bool)
	Save(cred *Credential) error
	Exists() bool
	Remove() error
}

// MetaStore is implemented by stores that can also cache small pieces of API
// metadata (channel ID, channel title) next to the credential.
type MetaStore interface {
	LoadMeta() (map[string]string, error)
	SaveMeta(meta map[string]string) error
}
