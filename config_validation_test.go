package kick

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/kick/feeders"
)

// ValidationTestConfig is a sample config struct for testing validation
type ValidationTestConfig struct {
	Name        string            `yaml:"name" json:"name" toml:"name" default:"Default Name" desc:"Name of the service"`
	Port        int               `yaml:"port" json:"port" toml:"port" default:"8080" required:"true" desc:"Port to listen on"`
	Debug       bool              `yaml:"debug" json:"debug" toml:"debug" default:"false" desc:"Enable debug mode"`
	Verbose     *bool             `yaml:"verbose" json:"verbose" toml:"verbose" default:"true"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout" toml:"timeout" default:"30s"`
	Ratio       float64           `yaml:"ratio" json:"ratio" toml:"ratio" default:"0.5"`
	Tags        []string          `yaml:"tags" json:"tags" toml:"tags" default:"[\"tag1\", \"tag2\"]" desc:"List of tags"`
	Environment string            `yaml:"environment" json:"environment" toml:"environment" required:"true" desc:"Environment (dev, test, prod)"`
	Nested      NestedTestConfig  `yaml:"nested" json:"nested" toml:"nested"`
	NestedCfg   *NestedTestConfig `yaml:"nestedCfg" json:"nestedCfg" toml:"nestedCfg"`
}

// NestedTestConfig is a nested config struct for testing
type NestedTestConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" toml:"enabled" default:"true" desc:"Enable nested feature"`
	ApiKey  string `yaml:"apiKey" json:"apiKey" toml:"apiKey" required:"true" desc:"API key for authentication"`
}

// Validate implements ConfigValidator
func (c *ValidationTestConfig) Validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return assert.AnError
	}
	return nil
}

func TestProcessConfigDefaults(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *ValidationTestConfig
		expected *ValidationTestConfig
		wantErr  bool
	}{
		{
			name: "all defaults",
			cfg:  &ValidationTestConfig{},
			expected: &ValidationTestConfig{
				Name:    "Default Name",
				Port:    8080,
				Debug:   false,
				Verbose: Bool(true),
				Timeout: 30 * time.Second,
				Ratio:   0.5,
				Tags:    []string{"tag1", "tag2"},
				Nested:  NestedTestConfig{Enabled: true},
			},
		},
		{
			name: "existing values preserved",
			cfg: &ValidationTestConfig{
				Name:        "Custom Name",
				Port:        9090,
				Verbose:     Bool(false),
				Environment: "prod",
				Tags:        []string{"custom"},
			},
			expected: &ValidationTestConfig{
				Name:        "Custom Name",
				Port:        9090,
				Verbose:     Bool(false),
				Timeout:     30 * time.Second,
				Ratio:       0.5,
				Tags:        []string{"custom"},
				Environment: "prod",
				Nested:      NestedTestConfig{Enabled: true},
			},
		},
		{
			name: "nested pointer struct processed when set",
			cfg:  &ValidationTestConfig{NestedCfg: &NestedTestConfig{ApiKey: "k"}},
			expected: &ValidationTestConfig{
				Name:      "Default Name",
				Port:      8080,
				Verbose:   Bool(true),
				Timeout:   30 * time.Second,
				Ratio:     0.5,
				Tags:      []string{"tag1", "tag2"},
				Nested:    NestedTestConfig{Enabled: true},
				NestedCfg: &NestedTestConfig{Enabled: true, ApiKey: "k"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ProcessConfigDefaults(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, tc.cfg)
		})
	}
}

func TestProcessConfigDefaultsRejectsBadInput(t *testing.T) {
	require.ErrorIs(t, ProcessConfigDefaults(nil), ErrConfigNil)
	require.ErrorIs(t, ProcessConfigDefaults(ValidationTestConfig{}), ErrConfigNotPointer)
	n := 3
	require.ErrorIs(t, ProcessConfigDefaults(&n), ErrConfigNotStruct)

	var badNumber struct {
		Port int `default:"eighty"`
	}
	require.ErrorIs(t, ProcessConfigDefaults(&badNumber), ErrDefaultValueParseError)

	var unsupported struct {
		Ports []int `default:"[1,2]"`
	}
	require.ErrorIs(t, ProcessConfigDefaults(&unsupported), ErrUnsupportedTypeForDefault)
}

func TestValidateConfigRequired(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *ValidationTestConfig
		wantErr  bool
		errorMsg string
	}{
		{
			name: "all required fields present",
			cfg: &ValidationTestConfig{
				Port:        8080,
				Environment: "dev",
				Nested:      NestedTestConfig{ApiKey: "test-key"},
			},
			wantErr: false,
		},
		{
			name: "missing environment",
			cfg: &ValidationTestConfig{
				Port:   8080,
				Nested: NestedTestConfig{ApiKey: "test-key"},
			},
			wantErr:  true,
			errorMsg: "Environment",
		},
		{
			name: "missing nested api key",
			cfg: &ValidationTestConfig{
				Port:        8080,
				Environment: "dev",
			},
			wantErr:  true,
			errorMsg: "Nested.ApiKey",
		},
		{
			name: "missing port",
			cfg: &ValidationTestConfig{
				Environment: "dev",
				Nested:      NestedTestConfig{ApiKey: "test-key"},
			},
			wantErr:  true,
			errorMsg: "Port",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfigRequired(tc.cfg)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrConfigRequiredFieldMissing)
				assert.Contains(t, err.Error(), tc.errorMsg)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ValidationTestConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &ValidationTestConfig{
				Environment: "dev",
				Nested:      NestedTestConfig{ApiKey: "test-key"},
			},
			wantErr: false,
		},
		{
			name: "validation error - port too low",
			cfg: &ValidationTestConfig{
				Port:        80,
				Environment: "dev",
				Nested:      NestedTestConfig{ApiKey: "test-key"},
			},
			wantErr: true,
		},
		{
			name:    "missing required field",
			cfg:     &ValidationTestConfig{Port: 8080},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 8080, tc.cfg.Port)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "", cfg.Prefix)
	assert.Equal(t, "/health", cfg.HealthEndpoint)
	assert.True(t, cfg.HealthEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Telemetry.HistoryEnabled())
	assert.Equal(t, 250, cfg.Telemetry.RequestHistoryLimit)
	assert.Equal(t, 10*time.Minute, cfg.Telemetry.RequestRetention)
	assert.Equal(t, "@every 1m", cfg.Telemetry.PruneSchedule)

	d := cfg.API.Discovery
	assert.True(t, *d.Enabled)
	assert.Equal(t, []string{"src/http"}, d.Roots)
	assert.Equal(t, ".controller", d.Suffix)
	assert.Equal(t, []string{".go"}, d.Extensions)
	assert.Equal(t, "/", d.BaseRoute)
	assert.Equal(t, ".", d.SegmentSeparator)
	assert.Equal(t, []string{"vendor", "node_modules"}, d.Ignore)
	assert.True(t, *d.EnforceStructure)
	assert.True(t, *d.RegisterGlobally)
	assert.True(t, *d.TagsFromDirectories)
	assert.True(t, *d.AllowStaticRoutes)

	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestResolveConfigKeepsExplicitValues(t *testing.T) {
	cfg, err := ResolveConfig(&AppConfig{
		HealthEndpoint: "off",
		Telemetry:      TelemetryConfig{TrackReactiveHistory: Bool(false)},
		API:            APIConfig{Discovery: DiscoveryConfig{Enabled: Bool(false), Roots: []string{"controllers"}}},
	})
	require.NoError(t, err)

	assert.False(t, cfg.HealthEnabled())
	assert.False(t, cfg.Telemetry.HistoryEnabled())
	assert.False(t, *cfg.API.Discovery.Enabled)
	assert.Equal(t, []string{"controllers"}, cfg.API.Discovery.Roots)
	assert.True(t, *cfg.API.Discovery.EnforceStructure)
}

func TestResolveConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		msg  string
	}{
		{"log level", AppConfig{Logging: LoggingConfig{Level: "chatty"}}, "invalid log level"},
		{"log format", AppConfig{Logging: LoggingConfig{Format: "xml"}}, "logging format"},
		{"history limit", AppConfig{Telemetry: TelemetryConfig{RequestHistoryLimit: -1}}, "requestHistoryLimit"},
		{"retention", AppConfig{Telemetry: TelemetryConfig{RequestRetention: -time.Second}}, "requestRetention"},
		{"schedule", AppConfig{Telemetry: TelemetryConfig{PruneSchedule: "whenever"}}, "pruneSchedule"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			_, err := ResolveConfig(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFiles(t *testing.T) {
	files := map[string]string{
		"kick.yaml": "prefix: /api\nlogging:\n  level: debug\ntelemetry:\n  requestRetention: 5m\napi:\n  discovery:\n    roots: [controllers]\n",
		"kick.toml": "prefix = \"/api\"\n[logging]\nlevel = \"debug\"\n[telemetry]\nrequestRetention = \"5m\"\n[api.discovery]\nroots = [\"controllers\"]\n",
		"kick.json": `{"prefix":"/api","logging":{"level":"debug"},"telemetry":{"requestRetention":"5m"},"api":{"discovery":{"roots":["controllers"]}}}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			feeder, err := feeders.ForFile(writeConfigFile(t, name, content))
			require.NoError(t, err)

			cfg, err := LoadConfig(feeder)
			require.NoError(t, err)
			assert.Equal(t, "/api", cfg.Prefix)
			assert.Equal(t, "debug", cfg.Logging.Level)
			assert.Equal(t, 5*time.Minute, cfg.Telemetry.RequestRetention)
			assert.Equal(t, []string{"controllers"}, cfg.API.Discovery.Roots)
			assert.Equal(t, "/health", cfg.HealthEndpoint)
		})
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	feeder, err := feeders.ForFile(writeConfigFile(t, "kick.yaml", "prefix: /api\nserver:\n  address: \":8080\"\n"))
	require.NoError(t, err)

	env := map[string]string{
		"KICK_PREFIX":                      "/v2",
		"KICK_API_DISCOVERY_ENABLED":       "false",
		"KICK_TELEMETRY_PRUNE_SCHEDULE":    "@hourly",
		"KICK_API_DISCOVERY_EXTENSIONS":    ".go,.gen.go",
		"KICK_TELEMETRY_REQUEST_RETENTION": "1h",
	}
	envFeeder := feeders.EnvFeeder{Prefix: "KICK", Lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	cfg, err := LoadConfig(feeder, envFeeder)
	require.NoError(t, err)
	assert.Equal(t, "/v2", cfg.Prefix)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.False(t, *cfg.API.Discovery.Enabled)
	assert.Equal(t, "@hourly", cfg.Telemetry.PruneSchedule)
	assert.Equal(t, []string{".go", ".gen.go"}, cfg.API.Discovery.Extensions)
	assert.Equal(t, time.Hour, cfg.Telemetry.RequestRetention)
}

func TestLoadConfigFeederError(t *testing.T) {
	feeder, err := feeders.ForFile(writeConfigFile(t, "kick.json", `{"telemetry": {"requestHistoryLimit": "many"}}`))
	require.NoError(t, err)

	_, err = LoadConfig(feeder)
	require.ErrorIs(t, err, ErrConfigFeederError)
}

func TestGenerateSampleConfig(t *testing.T) {
	cfg := &ValidationTestConfig{}

	yamlData, err := GenerateSampleConfig(cfg, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "name: Default Name")
	assert.Contains(t, string(yamlData), "port: 8080")

	jsonData, err := GenerateSampleConfig(cfg, "json")
	require.NoError(t, err)
	var jsonCfg map[string]any
	require.NoError(t, json.Unmarshal(jsonData, &jsonCfg))
	assert.Equal(t, "Default Name", jsonCfg["name"])
	assert.InEpsilon(t, 8080, jsonCfg["port"], 0.0001)

	tomlData, err := GenerateSampleConfig(cfg, "toml")
	require.NoError(t, err)
	tomlContent := strings.ToLower(string(tomlData))
	assert.Contains(t, tomlContent, `name = "default name"`)
	assert.Contains(t, tomlContent, "port = 8080")

	_, err = GenerateSampleConfig(cfg, "invalid")
	require.ErrorIs(t, err, ErrUnsupportedFormatType)

	_, err = GenerateSampleConfig(nil, "yaml")
	require.ErrorIs(t, err, ErrConfigNil)
}

func TestGenerateSampleAppConfig(t *testing.T) {
	data, err := GenerateSampleConfig(&AppConfig{}, "yaml")
	require.NoError(t, err)
	sample := string(data)
	assert.Contains(t, sample, "healthEndpoint: /health")
	assert.Contains(t, sample, "suffix: .controller")
	assert.Contains(t, sample, "pruneSchedule:")
	assert.Contains(t, sample, "@every 1m")
}

func TestDescribeConfig(t *testing.T) {
	lines := DescribeConfig(&ValidationTestConfig{})
	assert.Contains(t, lines, "name: Name of the service (default Default Name)")
	assert.Contains(t, lines, "environment: Environment (dev, test, prod)")
	assert.Contains(t, lines, "nested.apiKey: API key for authentication")
	assert.Contains(t, lines, "timeout: (default 30s)")

	app := DescribeConfig(AppConfig{})
	assert.Contains(t, app, "api.discovery.roots: Directories scanned for controller files (default [\"src/http\"])")
	assert.Contains(t, app, "telemetry.requestRetention: How long finished request stores stay registered (default 10m)")
}
