package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// DeviceCode holds the fields the user needs to complete a device grant.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
}

// DeviceFlow performs the device authorization grant:
//  1. Requests a device code
//  2. Calls Display so the CLI can show the user code and verification URL
//  3. Polls until the user authorizes (blocking, respects ctx cancellation)
//
// Google only offers this grant to "TV and Limited Input" OAuth clients.
type DeviceFlow struct {
	Display func(DeviceCode)
	Logger  *slog.Logger
}

// Consent implements Flow.
func (f *DeviceFlow) Consent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := withoutRedirect(base)

	logger.Info("starting device code consent flow")

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	if f.Display != nil {
		f.Display(DeviceCode{
			UserCode:        da.UserCode,
			VerificationURI: da.VerificationURI,
		})
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, consentError("device code authorization failed", err)
	}

	logger.Info("device consent successful", slog.Time("expiry", tok.Expiry))

	return tok, nil
}
