package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultClientName = "default"
	defaultAPIName    = "youtube"
	defaultAPIVersion = "v3"
	defaultFlow       = FlowBrowser
	defaultStore      = StoreFile
	defaultLogLevel   = "info"
	defaultLogFormat  = "auto"
	defaultTimeout    = "30s"
	defaultMaxRetries = 3
	defaultPageSize   = 50
)

// Consent flows.
const (
	FlowBrowser = "browser"
	FlowDevice  = "device"
)

// Credential store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Clients: make(map[string]ClientSection),
		Auth: AuthConfig{
			Flow:  defaultFlow,
			Store: defaultStore,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			Timeout:    defaultTimeout,
			MaxRetries: defaultMaxRetries,
			PageSize:   defaultPageSize,
		},
	}
}
