package config

// Options is the SDK configuration. It is read from YAML and overlaid with
// SENTRY_* environment variables (SENTRY_DSN, SENTRY_DATABASE_PATH, ...).
type Options struct {
	// DSN is the project credential. It is parsed by sdk.Init; an empty or
	// malformed value leaves the SDK disabled.
	DSN string `yaml:"dsn" koanf:"dsn"`
	// DatabasePath is the base directory for run storage.
	DatabasePath string `yaml:"database_path" koanf:"database_path" validate:"required"`

	Release     string `yaml:"release" koanf:"release"`
	Environment string `yaml:"environment" koanf:"environment"`
	Dist        string `yaml:"dist" koanf:"dist"`

	// Debug enables debug-level diagnostic logging.
	Debug bool `yaml:"debug" koanf:"debug"`
	// HTTPAddr is the listen address of the sidecar API.
	HTTPAddr string `yaml:"http_addr" koanf:"http_addr" validate:"required,hostname_port"`
}

const (
	DefaultDatabasePath = ".sentry-native"
	DefaultHTTPAddr     = "127.0.0.1:8089"
)

func (o *Options) applyDefaults() {
	if o.DatabasePath == "" {
		o.DatabasePath = DefaultDatabasePath
	}
	if o.HTTPAddr == "" {
		o.HTTPAddr = DefaultHTTPAddr
	}
}
