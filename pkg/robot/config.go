package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const DefaultConfigFile = "arms.json"

// Config holds the ports and calibration of both arms, as written by setup.
type Config struct {
	Leader   ArmConfig `json:"leader"`
	Follower ArmConfig `json:"follower"`
}

// ArmConfig holds configuration for a single arm
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// LoadConfig loads the arm configuration from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arm config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse arm config %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that both arms have a port and a complete calibration.
func (c *Config) Validate() error {
	var errs []error
	for role, arm := range map[string]ArmConfig{"leader": c.Leader, "follower": c.Follower} {
		if arm.Port == "" {
			errs = append(errs, fmt.Errorf("%s: no port configured", role))
			continue
		}
		if err := arm.Calibration.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
		}
	}
	return errors.Join(errs...)
}
