package config

// Models for the subset of the Dendrite configuration this tool reads. The
// file is owned by the homeserver; unknown keys are ignored.

type DendriteConfig struct {
	Global   *GlobalConfig   `yaml:"global"`
	MediaApi *MediaApiConfig `yaml:"media_api"`
}

type GlobalConfig struct {
	Database *DatabaseConfig `yaml:"database"`
	Sentry   SentryConfig    `yaml:"sentry"`
}

type SentryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dsn     string `yaml:"dsn"`
}

type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

type MediaApiConfig struct {
	BasePath string          `yaml:"base_path"`
	Database *DatabaseConfig `yaml:"database"`
}
