// Package config loads the recording session configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gwillem/demorecorder/pkg/input"
	"github.com/gwillem/demorecorder/pkg/logging"
	"github.com/gwillem/demorecorder/pkg/robot"
	"github.com/gwillem/demorecorder/pkg/teleop"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = "demorecorder.yaml"

// Robot backends.
const (
	BackendSO101 = "so101" // leader/follower SO-101 arms on feetech servos
	BackendSim   = "sim"   // simulated arms
	BackendLog   = "log"   // no actuation, every call is logged
)

// Config is the session configuration.
type Config struct {
	Backend   string            `yaml:"backend"`
	ArmConfig string            `yaml:"arm_config"`
	Hz        int               `yaml:"hz"`
	Mirror    bool              `yaml:"mirror"`
	DataDir   string            `yaml:"data_dir"`
	Gripper   GripperConfig     `yaml:"gripper"`
	Log       LogConfig         `yaml:"log"`
	Web       WebConfig         `yaml:"web"`
	Keys      map[string]string `yaml:"keys"` // key → "category/command"
}

// GripperConfig holds the normalized gripper targets (-100..100).
type GripperConfig struct {
	Open   float64 `yaml:"open"`
	Closed float64 `yaml:"closed"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // the terminal belongs to the UI while recording
}

// WebConfig holds the HTTP trigger and status server settings.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used for missing fields.
func Default() Config {
	return Config{
		Backend:   BackendSO101,
		ArmConfig: robot.DefaultConfigFile,
		Hz:        60,
		DataDir:   "episodes",
		Gripper:   GripperConfig{Open: 100, Closed: -100},
		Log:       LogConfig{Level: "info", Format: "text", File: "demorecorder.log"},
		Web:       WebConfig{Addr: ":8080"},
	}
}

// LoadEnv loads environment variables from a .env file. A missing file is
// not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

// Load reads a YAML config file on top of the defaults. Environment
// variables referenced as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Parse decodes YAML config data on top of the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveTo writes the configuration as YAML.
func (c Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendSO101, BackendSim, BackendLog:
	default:
		errs = append(errs, fmt.Errorf("config: unknown backend %q (want %s)", c.Backend,
			strings.Join([]string{BackendSO101, BackendSim, BackendLog}, ", ")))
	}
	if c.Backend == BackendSO101 && c.ArmConfig == "" {
		errs = append(errs, errors.New("config: arm_config is required for the so101 backend"))
	}
	if c.Hz <= 0 || c.Hz > 1000 {
		errs = append(errs, fmt.Errorf("config: hz must be in 1..1000, got %d", c.Hz))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("config: data_dir is required"))
	}
	for name, v := range map[string]float64{"open": c.Gripper.Open, "closed": c.Gripper.Closed} {
		if v < -100 || v > 100 {
			errs = append(errs, fmt.Errorf("config: gripper.%s must be in -100..100, got %g", name, v))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		errs = append(errs, errors.New("config: web.addr is required when web is enabled"))
	}
	if _, err := c.Keymap(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Keymap returns the configured key bindings, or the default ones when the
// config has none.
func (c Config) Keymap() (input.Keymap, error) {
	if len(c.Keys) == 0 {
		return input.DefaultKeymap(), nil
	}
	km, err := input.ParseKeymap(c.Keys)
	if err != nil {
		return nil, fmt.Errorf("config: keys: %w", err)
	}
	return km, nil
}

// Teleop returns the control loop settings.
func (c Config) Teleop() teleop.Config {
	return teleop.Config{
		Hz:            c.Hz,
		Mirror:        c.Mirror,
		GripperOpen:   c.Gripper.Open,
		GripperClosed: c.Gripper.Closed,
	}
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
