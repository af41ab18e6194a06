package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated TOML-like
// summary to w. This powers the "config show" command.
func RenderEffective(rc *ResolvedClient, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration for client %q\n\n", rc.Name)

	ew.printf("[client.%s]\n", rc.Name)
	ew.printf("  client_secrets = %q\n", rc.ClientSecrets)
	ew.printf("  scopes         = %q\n", rc.Scopes)
	ew.printf("  token_file     = %q\n", rc.TokenFile)
	ew.printf("  api_name       = %q\n", rc.APIName)
	ew.printf("  api_version    = %q\n\n", rc.APIVersion)

	ew.printf("[auth]\n")
	ew.printf("  flow     = %q\n", rc.Auth.Flow)
	ew.printf("  store    = %q\n", rc.Auth.Store)

	if rc.Auth.Store == StoreSQLite {
		ew.printf("  database = %q\n", rc.Auth.Database)
	}

	ew.printf("\n[logging]\n")
	ew.printf("  log_level  = %q\n", rc.Logging.LogLevel)
	ew.printf("  log_format = %q\n", rc.Logging.LogFormat)

	if rc.Logging.LogFile != "" {
		ew.printf("  log_file   = %q\n", rc.Logging.LogFile)
	}

	ew.printf("\n[network]\n")
	ew.printf("  timeout     = %q\n", rc.Network.Timeout)
	ew.printf("  max_retries = %d\n", rc.Network.MaxRetries)
	ew.printf("  page_size   = %d\n", rc.Network.PageSize)

	if rc.Network.UserAgent != "" {
		ew.printf("  user_agent  = %q\n", rc.Network.UserAgent)
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
