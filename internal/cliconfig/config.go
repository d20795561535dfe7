package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/lineship/pkg/delim"
)

// Defaults for the CLI configuration.
const (
	DefaultProtocol  = "tcp"
	DefaultPort      = 6514
	DefaultDelimiter = `\n`
	DefaultCharset   = "UTF-8"
)

// Config holds CLI configuration for lineship.
type Config struct {
	Protocol string
	Host     string
	Port     int

	Delimiter string
	Charset   string

	ConnectTimeout      time.Duration
	ShutdownQuietPeriod time.Duration
	ShutdownTimeout     time.Duration

	Poll           time.Duration
	QueueSize      int
	MaxPerDispatch int
	WriteQueueSize int

	StateDir string
	SpoolDir string

	Once    bool
	Verbose bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Protocol:            DefaultProtocol,
		Port:                DefaultPort,
		Delimiter:           DefaultDelimiter,
		Charset:             DefaultCharset,
		ConnectTimeout:      10 * time.Second,
		ShutdownQuietPeriod: 2 * time.Second,
		ShutdownTimeout:     10 * time.Second,
		Poll:                50 * time.Millisecond,
		QueueSize:           256,
		MaxPerDispatch:      32,
		WriteQueueSize:      64,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Protocol != "tcp" && c.Protocol != "udp" {
		return fmt.Errorf("protocol must be tcp or udp, got %q", c.Protocol)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("delimiter must not be empty")
	}
	if _, err := delim.LookupCharset(c.Charset); err != nil {
		return err
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
