package platform

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/remote"
	"github.com/aretw0/loft/pkg/snapshot"
	"github.com/aretw0/loft/pkg/weather"
)

// ConfigFileName is the file FindRoot and the CLI look for.
const ConfigFileName = "loft.yaml"

// Config is the file form of the loft configuration.
//
//	storage:
//	  adapter: sqlite
//	  path: loft.db
//	remote:
//	  weather_key: ${OPENWEATHER_API_KEY}
//	  timeout: 5s
//	export:
//	  s3:
//	    bucket: my-backups
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Remote  RemoteConfig  `yaml:"remote"`
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Seed    SeedConfig    `yaml:"seed"`
}

// StorageConfig selects and configures the store adapter.
type StorageConfig struct {
	// Adapter is one of "memory", "sqlite" or "postgres".
	Adapter  string `yaml:"adapter"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	ReadOnly bool   `yaml:"read_only"`
	// Watch reports commits made by other processes (sqlite only).
	Watch bool `yaml:"watch"`
}

// EventsConfig tunes the change-event broker.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// RemoteConfig configures the remote origins.
type RemoteConfig struct {
	MealsURL   string   `yaml:"meals_url"`
	WeatherURL string   `yaml:"weather_url"`
	WeatherKey string   `yaml:"weather_key"`
	Timeout    Duration `yaml:"timeout"`
	Units      string   `yaml:"units"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig configures snapshot exports. S3 takes precedence over Dir when set.
type ExportConfig struct {
	Dir string             `yaml:"dir"`
	Key string             `yaml:"key"`
	S3  *snapshot.S3Config `yaml:"s3"`
}

// SeedConfig controls first-run seeding of the tracker tables.
type SeedConfig struct {
	Auto bool   `yaml:"auto"`
	File string `yaml:"file"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{Adapter: AdapterSQLite, Path: "loft.db", Watch: true},
		Remote: RemoteConfig{
			MealsURL:   recipes.DefaultBaseURL,
			WeatherURL: weather.DefaultBaseURL,
			Timeout:    Duration(remote.DefaultTimeout),
			Units:      weather.DefaultUnits,
		},
		Server: ServerConfig{Addr: ":8080"},
		Export: ExportConfig{Dir: "backups", Key: snapshot.DefaultKey},
		Seed:   SeedConfig{Auto: true},
	}
}

// Load reads path (if not empty), applies LOFT_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data on top of DefaultConfig.
// ${VAR} and ${VAR:-default} are expanded in secrets and connection strings.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.expand(); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks the configuration for values no component accepts.
func (c *Config) Validate() error {
	switch c.Storage.Adapter {
	case AdapterMemory:
	case AdapterSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite adapter")
		}
	case AdapterPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres adapter")
		}
	default:
		return fmt.Errorf("storage.adapter: unknown adapter %q", c.Storage.Adapter)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("events.buffer must not be negative, got %d", c.Events.Buffer)
	}
	if c.Remote.Timeout.Duration() <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %s", c.Remote.Timeout.Duration())
	}
	if c.Export.S3 != nil && c.Export.S3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when export.s3 is set")
	}
	return nil
}

// Options converts the configuration into platform options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithAdapter(c.Storage.Adapter),
		WithPath(c.Storage.Path),
		WithDSN(c.Storage.DSN),
		WithReadOnly(c.Storage.ReadOnly),
		WithWatch(c.Storage.Watch),
		WithEventBuffer(c.Events.Buffer),
		WithMealsURL(c.Remote.MealsURL),
		WithWeather(c.Remote.WeatherURL, c.Remote.WeatherKey, c.Remote.Units),
		WithRemoteTimeout(c.Remote.Timeout.Duration()),
	}
	if c.Seed.Auto {
		opts = append(opts, WithAutoSeed(c.Seed.File))
	}
	return opts
}

// envOverrides maps LOFT_* variables onto configuration fields.
var envOverrides = map[string]func(c *Config, v string) error{
	"LOFT_STORAGE_ADAPTER": func(c *Config, v string) error { c.Storage.Adapter = v; return nil },
	"LOFT_STORAGE_PATH":    func(c *Config, v string) error { c.Storage.Path = v; return nil },
	"LOFT_STORAGE_DSN":     func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	"LOFT_READ_ONLY":       func(c *Config, v string) error { return parseBool(v, &c.Storage.ReadOnly) },
	"LOFT_WATCH":           func(c *Config, v string) error { return parseBool(v, &c.Storage.Watch) },
	"LOFT_EVENT_BUFFER": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Events.Buffer = n
		return nil
	},
	"LOFT_MEALS_URL":   func(c *Config, v string) error { c.Remote.MealsURL = v; return nil },
	"LOFT_WEATHER_URL": func(c *Config, v string) error { c.Remote.WeatherURL = v; return nil },
	"LOFT_WEATHER_KEY": func(c *Config, v string) error { c.Remote.WeatherKey = v; return nil },
	"LOFT_UNITS":       func(c *Config, v string) error { c.Remote.Units = v; return nil },
	"LOFT_REMOTE_TIMEOUT": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Remote.Timeout = Duration(d)
		return nil
	},
	"LOFT_SERVER_ADDR": func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"LOFT_EXPORT_DIR":  func(c *Config, v string) error { c.Export.Dir = v; return nil },
	"LOFT_EXPORT_BUCKET": func(c *Config, v string) error {
		if c.Export.S3 == nil {
			c.Export.S3 = &snapshot.S3Config{}
		}
		c.Export.S3.Bucket = v
		return nil
	},
	"LOFT_SEED_AUTO": func(c *Config, v string) error { return parseBool(v, &c.Seed.Auto) },
}

func (c *Config) applyEnv() error {
	for name, apply := range envOverrides {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := apply(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) expand() error {
	fields := []*string{&c.Storage.DSN, &c.Remote.WeatherKey}
	if c.Export.S3 != nil {
		fields = append(fields, &c.Export.S3.AccessKeyID, &c.Export.S3.SecretAccessKey, &c.Export.S3.SessionToken)
	}
	for _, f := range fields {
		expanded, err := expandEnvVars(*f)
		if err != nil {
			return err
		}
		*f = expanded
	}
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		value, exists := os.LookupEnv(name)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
