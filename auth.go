package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/happycod3r/ytapi/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize ytapi against your Google account",
		Long: `Authorize ytapi against your Google account.

A stored credential is reused (and refreshed if expired). Otherwise the
configured consent flow runs: "browser" opens the Google consent page and
listens on a loopback port, "device" prints a code to enter on another device.`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("force", false, "discard the stored credential and run consent again")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential for the selected client",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authorized channel and credential status",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, cancel := commandContext(cmd.Context(), cc.Logger)
	defer cancel()

	logger := cc.Logger

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	clientCfg, err := cc.clientConfig()
	if err != nil {
		return err
	}

	mgr, err := cc.newManager(ctx)
	if err != nil {
		return err
	}

	logger.Info("login started", "client", clientCfg.Name, "force", force)

	if force {
		if err := mgr.Logout(clientCfg.Name); err != nil {
			return err
		}
	}

	s, err := mgr.Session(ctx, clientCfg)
	if err != nil {
		return describeAuthError(err)
	}

	ch, err := s.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verifying credential: %w", err)
	}

	logger.Info("login successful", "client", clientCfg.Name, "channel_id", ch.ID)
	cc.Statusf("Logged in as %s (%s).\n", ch.Title, ch.ID)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager(cmd.Context())
	if err != nil {
		return err
	}

	if err := mgr.Logout(cc.Resolved.Name); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Client       string    `json:"client"`
	API          string    `json:"api"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Scopes       []string  `json:"scopes"`
	Status       string    `json:"status"`
	Expiry       time.Time `json:"expiry,omitzero"`
	CanRefresh   bool      `json:"can_refresh"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, cancel := commandContext(cmd.Context(), cc.Logger)
	defer cancel()

	cc.Logger.Debug("whoami", "client", cc.Resolved.Name)

	s, err := cc.openSession(ctx)
	if err != nil {
		return describeAuthError(err)
	}

	ch, err := s.Verify(ctx)
	if err != nil {
		return fmt.Errorf("fetching channel: %w", err)
	}

	cred := s.Credential()
	out := whoamiOutput{
		Client:       s.Name,
		API:          s.APIName + "/" + s.APIVersion,
		ChannelID:    ch.ID,
		ChannelTitle: ch.Title,
		Scopes:       cred.Scopes,
		Status:       cred.Status(time.Now()).String(),
		Expiry:       cred.Expiry,
		CanRefresh:   cred.CanRefresh(),
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	printWhoamiText(cc, out)

	return nil
}

func printWhoamiText(cc *CLIContext, out whoamiOutput) {
	fmt.Fprintf(cc.Stdout, "Channel: %s (%s)\n", out.ChannelTitle, out.ChannelID)
	fmt.Fprintf(cc.Stdout, "Client:  %s (%s)\n", out.Client, out.API)
	fmt.Fprintf(cc.Stdout, "Token:   %s", out.Status)

	if !out.Expiry.IsZero() {
		fmt.Fprintf(cc.Stdout, ", expires %s", formatTime(out.Expiry))
	}

	if out.CanRefresh {
		fmt.Fprint(cc.Stdout, ", refreshable")
	}

	fmt.Fprintln(cc.Stdout)

	for _, scope := range out.Scopes {
		fmt.Fprintf(cc.Stdout, "Scope:   %s\n", scope)
	}
}

// describeAuthError adds a next step to errors the user can act on.
func describeAuthError(err error) error {
	var authErr *session.AuthenticationError
	if !errors.As(err, &authErr) {
		return err
	}

	switch authErr.Reason {
	case session.ReasonConsentDenied:
		return fmt.Errorf("%w (authorization was declined; run 'ytapi login' to try again)", err)
	case session.ReasonNetwork:
		return fmt.Errorf("%w (check your network connection and retry)", err)
	case session.ReasonNoCredential, session.ReasonRefreshFailed:
		return fmt.Errorf("%w (run 'ytapi login')", err)
	}

	return err
}

