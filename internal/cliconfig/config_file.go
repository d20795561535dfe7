package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Protocol            string `toml:"protocol"`
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	Delimiter           string `toml:"delimiter"`
	Charset             string `toml:"charset"`
	ConnectTimeout      string `toml:"connect_timeout"`
	ShutdownQuietPeriod string `toml:"shutdown_quiet_period"`
	ShutdownTimeout     string `toml:"shutdown_timeout"`
	Poll                string `toml:"poll"`
	QueueSize           int    `toml:"queue_size"`
	MaxPerDispatch      int    `toml:"max_per_dispatch"`
	WriteQueueSize      int    `toml:"write_queue_size"`
	StateDir            string `toml:"state_dir"`
	SpoolDir            string `toml:"spool_dir"`
	Once                *bool  `toml:"once"`
	Verbose             *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.lineship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".lineship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("protocol", fc.Protocol, &cfg.Protocol)
	s.setString("host", fc.Host, &cfg.Host)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("delimiter", fc.Delimiter, &cfg.Delimiter)
	s.setString("charset", fc.Charset, &cfg.Charset)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("spool", fc.SpoolDir, &cfg.SpoolDir)

	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-quiet-period", fc.ShutdownQuietPeriod, &cfg.ShutdownQuietPeriod); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.Poll, &cfg.Poll); err != nil {
		return err
	}

	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)
	s.setInt("max-per-dispatch", fc.MaxPerDispatch, &cfg.MaxPerDispatch)
	s.setInt("write-queue-size", fc.WriteQueueSize, &cfg.WriteQueueSize)

	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
