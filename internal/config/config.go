package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Output drivers
const (
	DriverRPIO   = "rpio"
	DriverMemory = "memory"
	DriverLog    = "log"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Loop            LoopConfig        `yaml:"loop"`
	Output          OutputConfig      `yaml:"output"`
	Channels        []ChannelConfig   `yaml:"channels"`
	Script          string            `yaml:"script"` // Lua show script, empty = none
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains transition ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// LoopConfig contains show loop settings
type LoopConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// OutputConfig selects and tunes the PWM output driver
type OutputConfig struct {
	Driver            string  `yaml:"driver"`             // rpio, memory or log
	PWMFrequency      int     `yaml:"pwm_frequency"`      // Hardware PWM clock in Hz
	CycleLength       uint32  `yaml:"cycle_length"`       // Hardware PWM cycle length
	SoftwareFrequency int     `yaml:"software_frequency"` // Soft PWM rate for non-PWM pins
	RateLimit         float64 `yaml:"rate_limit"`         // Writes per second, 0 = unpaced
	Burst             int     `yaml:"burst"`
}

// ChannelConfig names one RGB light and its three output pins
type ChannelConfig struct {
	Name  string `yaml:"name"`
	Red   *int   `yaml:"red"`
	Green *int   `yaml:"green"`
	Blue  *int   `yaml:"blue"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns host:port for the health server.
func (c HealthcheckConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads, parses and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR:default} references and
// applying defaults, then validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./rgbd.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// Event bus defaults; a single worker keeps ledger rows in event order
	if cfg.EventBus.Workers <= 0 {
		cfg.EventBus.Workers = 1
	}
	if cfg.EventBus.QueueSize <= 0 {
		cfg.EventBus.QueueSize = 256
	}

	if cfg.Loop.QueueSize <= 0 {
		cfg.Loop.QueueSize = 256
	}

	// Output defaults
	if cfg.Output.Driver == "" {
		cfg.Output.Driver = DriverRPIO
	}
	if cfg.Output.PWMFrequency <= 0 {
		cfg.Output.PWMFrequency = 64000
	}
	if cfg.Output.CycleLength == 0 {
		cfg.Output.CycleLength = 100
	}
	if cfg.Output.SoftwareFrequency <= 0 {
		cfg.Output.SoftwareFrequency = 100
	}
	if cfg.Output.Burst <= 0 {
		cfg.Output.Burst = 1
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate reports every problem in the configuration at once.
func (cfg *Config) Validate() error {
	var errs []error

	switch cfg.Output.Driver {
	case DriverRPIO, DriverMemory, DriverLog:
	default:
		errs = append(errs, fmt.Errorf("output.driver: unknown driver %q", cfg.Output.Driver))
	}
	if cfg.Output.RateLimit < 0 {
		errs = append(errs, errors.New("output.rate_limit must not be negative"))
	}

	if len(cfg.Channels) == 0 {
		errs = append(errs, errors.New("channels: at least one channel is required"))
	}
	seen := make(map[string]bool)
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("channels[%d]: name is required", i))
		} else if seen[ch.Name] {
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate name %q", i, ch.Name))
		}
		seen[ch.Name] = true

		for _, pin := range []struct {
			name  string
			value *int
		}{{"red", ch.Red}, {"green", ch.Green}, {"blue", ch.Blue}} {
			switch {
			case pin.value == nil:
				errs = append(errs, fmt.Errorf("channels[%d].%s: pin is required", i, pin.name))
			case *pin.value < 0:
				errs = append(errs, fmt.Errorf("channels[%d].%s: pin must not be negative", i, pin.name))
			}
		}
	}

	return errors.Join(errs...)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
