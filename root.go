package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/happycod3r/ytapi/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath    string
	Client        string
	ClientSecrets string
	Flow          string
	JSON          bool
	Verbose       bool
	Quiet         bool
}

// CLIContext is built once in PersistentPreRunE and travels to subcommands
// through the command context.
type CLIContext struct {
	Flags    CLIFlags
	Resolved *config.ResolvedClient
	Logger   *slog.Logger

	// Stdout and Stderr are swapped out by tests.
	Stdout io.Writer
	Stderr io.Writer

	closers []io.Closer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. Commands
// only run after the pre-run, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("ytapi: CLIContext not initialized")
	}

	return cc
}

// Close releases resources opened on behalf of the command (log file, database).
func (cc *CLIContext) Close() error {
	var errs []error

	for i := len(cc.closers) - 1; i >= 0; i-- {
		errs = append(errs, cc.closers[i].Close())
	}

	cc.closers = nil

	return errors.Join(errs...)
}

func (cc *CLIContext) onClose(c io.Closer) {
	cc.closers = append(cc.closers, c)
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "ytapi",
		Short:   "YouTube Data API client",
		Long:    "Authorize against Google once, then list playlists, subscriptions, search results and comments.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return mustCLIContext(cmd.Context()).Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Client, "client", "", "client section to use (see [client.<name>] in config)")
	pf.StringVar(&flags.ClientSecrets, "client-secrets", "", "path to a Google client_secret.json")
	pf.StringVar(&flags.Flow, "flow", "", "consent flow when authorization is needed: browser or device")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger from it.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Client:     flags.Client,
	}

	// Only pass flags the user explicitly set, so config values survive.
	if cmd.Flags().Changed("client-secrets") {
		cli.ClientSecrets = &flags.ClientSecrets
	}

	if cmd.Flags().Changed("flow") {
		cli.Flow = &flags.Flow
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Flags:    flags,
		Resolved: resolved,
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
	}

	logger, closer, err := buildLogger(resolved.Logging, flags, cc.Stderr)
	if err != nil {
		return nil, err
	}

	if closer != nil {
		cc.onClose(closer)
	}

	cc.Logger = logger

	return cc, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(lc config.LoggingConfig, flags CLIFlags, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo

	switch lc.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	w := stderr

	var closer io.Closer

	if lc.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(lc.LogFile), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}

		f, err := os.OpenFile(lc.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(lc.LogFormat, w) {
		return slog.New(slog.NewJSONHandler(w, opts)), closer, nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), closer, nil
}

// useJSONLogs resolves the "auto" format: text for a terminal, JSON for
// files and pipes.
func useJSONLogs(format string, w io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	return !isTerminal(w)
}

// isTerminal reports whether w is a terminal (or a Cygwin/MSYS pty).
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
