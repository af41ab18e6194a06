package main

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/happycod3r/ytapi/internal/auth"
	"github.com/happycod3r/ytapi/internal/config"
	"github.com/happycod3r/ytapi/internal/credential"
	"github.com/happycod3r/ytapi/internal/session"
	"github.com/happycod3r/ytapi/internal/youtube"
)

// clientConfig loads the client secrets named by the resolved config and
// turns them into the session layer's view of one client identity.
func (cc *CLIContext) clientConfig() (session.ClientConfig, error) {
	rc := cc.Resolved

	oauthCfg, err := auth.LoadClientSecrets(rc.ClientSecrets, rc.Scopes)
	if err != nil {
		return session.ClientConfig{}, err
	}

	return session.ClientConfig{
		Name:       rc.Name,
		OAuth:      oauthCfg,
		APIName:    rc.APIName,
		APIVersion: rc.APIVersion,
	}, nil
}

// newManager wires a session.Manager to the configured credential store,
// consent flow and network settings.
func (cc *CLIContext) newManager(ctx context.Context) (*session.Manager, error) {
	stores, err := cc.storeFunc(ctx)
	if err != nil {
		return nil, err
	}

	rc := cc.Resolved
	opts := []session.Option{
		session.WithHTTPClient(&http.Client{Timeout: rc.Network.TimeoutDuration()}),
		session.WithAuthHTTPClient(&http.Client{Timeout: rc.Network.TimeoutDuration()}),
		session.WithFlow(cc.consentFlow()),
		session.WithClientOptions(cc.clientOptions()...),
	}

	return session.NewManager(stores, cc.Logger, opts...), nil
}

func (cc *CLIContext) clientOptions() []youtube.Option {
	opts := []youtube.Option{youtube.WithMaxRetries(cc.Resolved.Network.MaxRetries)}

	ua := cc.Resolved.Network.UserAgent
	if ua == "" {
		ua = "ytapi/" + version
	}

	return append(opts, youtube.WithUserAgent(ua))
}

// storeFunc returns the credential slot factory for the configured backend.
// The SQLite database is closed with the CLIContext.
func (cc *CLIContext) storeFunc(ctx context.Context) (session.StoreFunc, error) {
	rc := cc.Resolved

	switch rc.Auth.Store {
	case config.StoreSQLite:
		db, err := credential.OpenDB(ctx, rc.Auth.Database, cc.Logger)
		if err != nil {
			return nil, err
		}

		cc.onClose(db)

		return func(name string) credential.Store { return db.Slot(name) }, nil
	case config.StoreFile:
		// Only the selected client has a configured token path.
		return func(name string) credential.Store {
			path := rc.TokenFile
			if name != rc.Name {
				path = config.DefaultTokenPath(name)
			}

			return credential.NewFileStore(path, cc.Logger)
		}, nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", rc.Auth.Store)
	}
}

// consentFlow picks the interactive flow used when no usable credential
// exists. Prompts go to stderr and are not suppressed by --quiet.
func (cc *CLIContext) consentFlow() auth.Flow {
	if cc.Resolved.Auth.Flow == config.FlowDevice {
		return &auth.DeviceFlow{
			Display: func(dc auth.DeviceCode) {
				fmt.Fprintf(cc.Stderr, "To sign in, visit: %s\n", dc.VerificationURI)
				fmt.Fprintf(cc.Stderr, "Enter code: %s\n", dc.UserCode)
			},
			Logger: cc.Logger,
		}
	}

	return &auth.BrowserFlow{
		OpenURL: openBrowser,
		Out:     cc.Stderr,
		Logger:  cc.Logger,
	}
}

// openBrowser launches the platform URL handler without waiting for it.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	// Reap the child in the background.
	go func() { _ = cmd.Wait() }()

	return nil
}

// openSession establishes the authenticated session for the selected client.
func (cc *CLIContext) openSession(ctx context.Context) (*session.Session, error) {
	clientCfg, err := cc.clientConfig()
	if err != nil {
		return nil, err
	}

	mgr, err := cc.newManager(ctx)
	if err != nil {
		return nil, err
	}

	return mgr.Session(ctx, clientCfg)
}
