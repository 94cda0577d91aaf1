// Package config loads the configuration of cbsmon from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ftl/ril-cbs/serial"
)

type Config struct {
	Device            Device `yaml:"device"`
	Topics            string `yaml:"topics"`
	Activate          bool   `yaml:"activate"`
	StrictTopicRanges bool   `yaml:"strict_topic_ranges"`
	Log               Log    `yaml:"log"`
}

// Device selects how the modem is reached. Exactly one of Port, Socket or Detect is used,
// in this order.
type Device struct {
	Port   string `yaml:"port"`
	Socket string `yaml:"socket"`
	Detect string `yaml:"detect"`
}

type Log struct {
	Level  string `yaml:"level"`
	Prefix string `yaml:"prefix"`
	Trace  string `yaml:"trace"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFromPath loads the config from the given file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.Port == "" && c.Device.Socket == "" && c.Device.Detect == "" {
		c.Device.Socket = serial.DefaultSocket
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

var validLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) Validate() error {
	var errs []error
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}
	if c.Device.Port != "" && c.Device.Socket != "" {
		errs = append(errs, errors.New("device: port and socket are mutually exclusive"))
	}
	return errors.Join(errs...)
}
