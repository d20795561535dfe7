package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (LINESHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("protocol", os.Getenv("LINESHIP_PROTOCOL"), &cfg.Protocol)
	s.setString("host", os.Getenv("LINESHIP_HOST"), &cfg.Host)
	s.setString("delimiter", os.Getenv("LINESHIP_DELIMITER"), &cfg.Delimiter)
	s.setString("charset", os.Getenv("LINESHIP_CHARSET"), &cfg.Charset)
	s.setString("state-dir", os.Getenv("LINESHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("spool", os.Getenv("LINESHIP_SPOOL_DIR"), &cfg.SpoolDir)

	if err := s.setIntFromString("port", os.Getenv("LINESHIP_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-size", os.Getenv("LINESHIP_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-per-dispatch", os.Getenv("LINESHIP_MAX_PER_DISPATCH"), &cfg.MaxPerDispatch); err != nil {
		return err
	}
	if err := s.setIntFromString("write-queue-size", os.Getenv("LINESHIP_WRITE_QUEUE_SIZE"), &cfg.WriteQueueSize); err != nil {
		return err
	}

	if err := s.setDuration("connect-timeout", os.Getenv("LINESHIP_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-quiet-period", os.Getenv("LINESHIP_SHUTDOWN_QUIET_PERIOD"), &cfg.ShutdownQuietPeriod); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("LINESHIP_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("LINESHIP_POLL"), &cfg.Poll); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("LINESHIP_ONCE"), &cfg.Once)
	s.setBoolFromString("verbose", os.Getenv("LINESHIP_VERBOSE"), &cfg.Verbose)

	return nil
}
