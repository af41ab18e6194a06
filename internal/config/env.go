package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig        = "YTAPI_CONFIG"
	EnvClient        = "YTAPI_CLIENT"
	EnvClientSecrets = "YTAPI_CLIENT_SECRETS"
	EnvLogLevel      = "YTAPI_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath    string // YTAPI_CONFIG: override config file path
	Client        string // YTAPI_CLIENT: active client name
	ClientSecrets string // YTAPI_CLIENT_SECRETS: client_secret.json path
	LogLevel      string // YTAPI_LOG_LEVEL: log level override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		Client:        os.Getenv(EnvClient),
		ClientSecrets: os.Getenv(EnvClientSecrets),
		LogLevel:      os.Getenv(EnvLogLevel),
	}
}
