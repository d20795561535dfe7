package cliconfig

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with host",
			mutate: func(c *Config) {},
		},
		{
			name:   "udp protocol",
			mutate: func(c *Config) { c.Protocol = "udp" },
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "sctp" },
			wantErr: "protocol",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: "host",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "empty delimiter",
			mutate:  func(c *Config) { c.Delimiter = "" },
			wantErr: "delimiter",
		},
		{
			name:    "unknown charset",
			mutate:  func(c *Config) { c.Charset = "KLINGON-8" },
			wantErr: "charset",
		},
		{
			name:   "latin-1 charset",
			mutate: func(c *Config) { c.Charset = "ISO-8859-1" },
		},
		{
			name:    "non-positive poll",
			mutate:  func(c *Config) { c.Poll = 0 },
			wantErr: "poll",
		},
		{
			name:    "non-positive connect timeout",
			mutate:  func(c *Config) { c.ConnectTimeout = -time.Second },
			wantErr: "connect timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Protocol != "tcp" {
		t.Errorf("Protocol = %q, want tcp", cfg.Protocol)
	}
	if cfg.Delimiter != `\n` {
		t.Errorf("Delimiter = %q, want \\n escape", cfg.Delimiter)
	}
	if cfg.Charset != "UTF-8" {
		t.Errorf("Charset = %q, want UTF-8", cfg.Charset)
	}
	if cfg.Once {
		t.Error("Once should default to false")
	}
}
