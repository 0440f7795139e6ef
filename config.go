package kick

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// AppConfig is the framework configuration. Zero values are replaced by the
// `default` tags when the config is resolved.
type AppConfig struct {
	// Prefix is prepended to every controller route.
	Prefix string `yaml:"prefix" json:"prefix" toml:"prefix" env:"PREFIX" desc:"Global route prefix"`
	// HealthEndpoint serves {"status":"ok"}. "false" or "off" disables it.
	HealthEndpoint string            `yaml:"healthEndpoint" json:"healthEndpoint" toml:"healthEndpoint" env:"HEALTH_ENDPOINT" default:"/health" desc:"Health check route"`
	Logging        LoggingConfig     `yaml:"logging" json:"logging" toml:"logging" env:"LOGGING"`
	Telemetry      TelemetryConfig   `yaml:"telemetry" json:"telemetry" toml:"telemetry" env:"TELEMETRY"`
	API            APIConfig         `yaml:"api" json:"api" toml:"api" env:"API"`
	Diagnostics    DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics" toml:"diagnostics" env:"DIAGNOSTICS"`
	Metrics        MetricsConfig     `yaml:"metrics" json:"metrics" toml:"metrics" env:"METRICS"`
	Server         ServerConfig      `yaml:"server" json:"server" toml:"server" env:"SERVER"`
}

// LoggingConfig configures the default slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" toml:"level" env:"LEVEL" default:"info" desc:"debug, info, warn or error"`
	Format string `yaml:"format" json:"format" toml:"format" env:"FORMAT" default:"text" desc:"text or json"`
}

// TelemetryConfig configures per-request tracking.
type TelemetryConfig struct {
	TrackReactiveHistory *bool         `yaml:"trackReactiveHistory" json:"trackReactiveHistory" toml:"trackReactiveHistory" env:"TRACK_REACTIVE_HISTORY" default:"true" desc:"Record change history on request stores"`
	RequestHistoryLimit  int           `yaml:"requestHistoryLimit" json:"requestHistoryLimit" toml:"requestHistoryLimit" env:"REQUEST_HISTORY_LIMIT" default:"250" desc:"Max history entries per request store"`
	RequestRetention     time.Duration `yaml:"requestRetention" json:"requestRetention" toml:"requestRetention" env:"REQUEST_RETENTION" default:"10m" desc:"How long finished request stores stay registered"`
	PruneSchedule        string        `yaml:"pruneSchedule" json:"pruneSchedule" toml:"pruneSchedule" env:"PRUNE_SCHEDULE" default:"@every 1m" desc:"Cron spec for pruning finished request stores"`
}

// HistoryEnabled reports whether request stores record history.
func (t TelemetryConfig) HistoryEnabled() bool {
	return t.TrackReactiveHistory == nil || *t.TrackReactiveHistory
}

// APIConfig groups API surface settings.
type APIConfig struct {
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery" toml:"discovery" env:"DISCOVERY"`
}

// DiscoveryConfig controls filesystem controller discovery.
type DiscoveryConfig struct {
	Enabled             *bool    `yaml:"enabled" json:"enabled" toml:"enabled" env:"ENABLED" default:"true"`
	Roots               []string `yaml:"roots" json:"roots" toml:"roots" env:"ROOTS" default:"[\"src/http\"]" desc:"Directories scanned for controller files"`
	BaseDir             string   `yaml:"baseDir" json:"baseDir" toml:"baseDir" env:"BASE_DIR" desc:"Directory relative roots resolve against; defaults to the working directory"`
	Suffix              string   `yaml:"suffix" json:"suffix" toml:"suffix" env:"SUFFIX" default:".controller"`
	Extensions          []string `yaml:"extensions" json:"extensions" toml:"extensions" env:"EXTENSIONS" default:"[\".go\"]"`
	BaseRoute           string   `yaml:"baseRoute" json:"baseRoute" toml:"baseRoute" env:"BASE_ROUTE" default:"/"`
	SegmentSeparator    string   `yaml:"segmentSeparator" json:"segmentSeparator" toml:"segmentSeparator" env:"SEGMENT_SEPARATOR" default:"."`
	EnforceStructure    *bool    `yaml:"enforceStructure" json:"enforceStructure" toml:"enforceStructure" env:"ENFORCE_STRUCTURE" default:"true"`
	RegisterGlobally    *bool    `yaml:"registerGlobally" json:"registerGlobally" toml:"registerGlobally" env:"REGISTER_GLOBALLY" default:"true"`
	Ignore              []string `yaml:"ignore" json:"ignore" toml:"ignore" env:"IGNORE" default:"[\"vendor\",\"node_modules\"]"`
	TagsFromDirectories *bool    `yaml:"tagsFromDirectories" json:"tagsFromDirectories" toml:"tagsFromDirectories" env:"TAGS_FROM_DIRECTORIES" default:"true"`
	AllowStaticRoutes   *bool    `yaml:"allowStaticRoutes" json:"allowStaticRoutes" toml:"allowStaticRoutes" env:"ALLOW_STATIC_ROUTES" default:"true"`
}

// DiagnosticsConfig exposes the diagnostics snapshot over HTTP when Endpoint
// is set.
type DiagnosticsConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" toml:"endpoint" env:"ENDPOINT" desc:"Route serving diagnostics, empty disables it"`
}

// MetricsConfig exposes Prometheus metrics when Endpoint is set.
type MetricsConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" toml:"endpoint" env:"ENDPOINT" desc:"Route serving Prometheus metrics, empty disables it"`
}

// ServerConfig configures App.Run.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address" toml:"address" env:"ADDRESS" default:":3000"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout" toml:"readTimeout" env:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout" toml:"writeTimeout" env:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" json:"idleTimeout" toml:"idleTimeout" env:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout" toml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// HealthEnabled reports whether the health route is served.
func (c AppConfig) HealthEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.HealthEndpoint)) {
	case "false", "off", "":
		return false
	}
	return true
}

// Validate checks values that defaults cannot make safe.
func (c *AppConfig) Validate() error {
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging format %q", ErrConfigValidationFailed, c.Logging.Format)
	}
	if c.Telemetry.RequestHistoryLimit < 0 {
		return fmt.Errorf("%w: telemetry.requestHistoryLimit must not be negative", ErrConfigValidationFailed)
	}
	if c.Telemetry.RequestRetention < 0 {
		return fmt.Errorf("%w: telemetry.requestRetention must not be negative", ErrConfigValidationFailed)
	}
	if _, err := cron.ParseStandard(c.Telemetry.PruneSchedule); err != nil {
		return fmt.Errorf("%w: telemetry.pruneSchedule: %w", ErrConfigValidationFailed, err)
	}
	if c.API.Discovery.SegmentSeparator == "" {
		return fmt.Errorf("%w: api.discovery.segmentSeparator must not be empty", ErrConfigValidationFailed)
	}
	return nil
}

// ResolveConfig returns a copy of cfg with defaults applied and validated.
// A nil cfg yields the defaults.
func ResolveConfig(cfg *AppConfig) (AppConfig, error) {
	var resolved AppConfig
	if cfg != nil {
		resolved = *cfg
	}
	if err := ValidateConfig(&resolved); err != nil {
		return AppConfig{}, err
	}
	return resolved, nil
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() AppConfig {
	cfg, err := ResolveConfig(nil)
	if err != nil {
		panic(fmt.Sprintf("kick: invalid default config: %v", err))
	}
	return cfg
}

func boolValue(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// Bool returns a pointer to b, for optional boolean config fields.
func Bool(b bool) *bool { return &b }
