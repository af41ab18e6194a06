package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/happycod3r/ytapi/internal/auth"
)

// Reason says why a session could not be established.
type Reason string

const (
	// ReasonNoCredential means nothing usable was stored and no consent flow
	// is available to obtain a new grant.
	ReasonNoCredential Reason = "no_credential"
	// ReasonRefreshFailed means the authorization server rejected the stored
	// refresh token and no consent flow is available.
	ReasonRefreshFailed Reason = "refresh_failed"
	// ReasonConsentDenied means the user (or the authorization server)
	// refused or abandoned the interactive grant.
	ReasonConsentDenied Reason = "consent_denied"
	// ReasonNetwork means the authorization server could not be reached or
	// answered with an outage (5xx, 429).
	ReasonNetwork Reason = "network"
)

// AuthenticationError is returned by Manager.Session. Callers that want to
// retry automatically should only do so when Retryable reports true; every
// other reason needs the user to act (log in again, grant access).
type AuthenticationError struct {
	Client string
	Reason Reason
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session %q: authentication failed: %s", e.Client, e.Reason)
	}

	return fmt.Sprintf("session %q: authentication failed: %s: %v", e.Client, e.Reason, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure was transient.
func (e *AuthenticationError) Retryable() bool {
	return e.Reason == ReasonNetwork
}

// IsReauthRequired reports whether err is an AuthenticationError that only
// a new interactive login can resolve.
func IsReauthRequired(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae) && !ae.Retryable()
}

// consentReason classifies a consent flow failure. A refusal by the user or
// the authorization server, a rejected callback, or the user abandoning the
// flow needs a new login; anything else is a transport problem.
func consentReason(err error) Reason {
	switch {
	case errors.Is(err, auth.ErrConsentDenied),
		errors.Is(err, auth.ErrCallbackRejected),
		errors.Is(err, context.Canceled),
		auth.GrantRejected(err):
		return ReasonConsentDenied
	default:
		return ReasonNetwork
	}
}
