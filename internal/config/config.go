package config

// Config is the root toolgate configuration.
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Catalog   CatalogConfig   `json:"catalog" mapstructure:"catalog"`
	Execution ExecutionConfig `json:"execution" mapstructure:"execution"`
	Pipeline  PipelineConfig  `json:"pipeline" mapstructure:"pipeline"`
	Assets    AssetsConfig    `json:"assets" mapstructure:"assets"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds the gateway HTTP server settings.
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
}

// CatalogConfig describes where tool definitions live and how they are
// kept fresh. Dirs order encodes override priority, later wins.
type CatalogConfig struct {
	Dirs []string `json:"dirs" mapstructure:"dirs"`

	// Watch enables fsnotify-driven auto reload.
	Watch bool `json:"watch" mapstructure:"watch"`

	// ReloadSchedule is an optional cron expression for periodic
	// rescans, e.g. "*/15 * * * *".
	ReloadSchedule string `json:"reload_schedule" mapstructure:"reload_schedule"`
}

// ExecutionConfig holds runner defaults.
type ExecutionConfig struct {
	DefaultTimeoutSeconds int            `json:"default_timeout_seconds" mapstructure:"default_timeout_seconds"`
	MaxOutputBytes        int            `json:"max_output_bytes" mapstructure:"max_output_bytes"`
	TimeoutOverrides      map[string]int `json:"timeout_overrides" mapstructure:"timeout_overrides"`
}

// PipelineConfig points at the remote execution service. An empty
// endpoint disables the pipeline backend; pipeline tools then fail
// with a configuration error rather than at startup.
type PipelineConfig struct {
	Endpoint             string `json:"endpoint" mapstructure:"endpoint"`
	APIKey               string `json:"api_key" mapstructure:"api_key"`
	NetworkMarginSeconds int    `json:"network_margin_seconds" mapstructure:"network_margin_seconds"`
}

// AssetsConfig points at the external asset service. An empty endpoint
// degrades asset intelligence to "no enrichment available".
type AssetsConfig struct {
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// LoggingConfig mirrors the logger package's options.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// Default returns the configuration used when no file is present:
// built-ins only, conservative caps, no asset enrichment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8210,
			RateLimitPerMinute: 120,
		},
		Catalog: CatalogConfig{
			Dirs:  nil,
			Watch: false,
		},
		Execution: ExecutionConfig{
			DefaultTimeoutSeconds: 30,
			MaxOutputBytes:        64 * 1024,
		},
		Pipeline: PipelineConfig{
			NetworkMarginSeconds: 5,
		},
		Assets: AssetsConfig{
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
	}
}
