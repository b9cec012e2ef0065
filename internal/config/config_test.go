package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Endpoint:        "https://models.example.com",
		Deployment:      "gpt-4o",
		APIVersion:      "2024-06-01",
		ExchangeBaseURL: DefaultExchangeBaseURL,
		Host:            "127.0.0.1",
		Port:            8080,
		SessionTTL:      DefaultSessionTTL,
		SweepInterval:   DefaultSweepInterval,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }, wantErr: ErrInvalidPort},
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }, wantErr: ErrInvalidPort},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: ErrInvalidSessionTTL},
		{name: "negative sweep", mutate: func(c *Config) { c.SweepInterval = -time.Second }, wantErr: ErrInvalidSweepInterval},
		{name: "empty exchange url", mutate: func(c *Config) { c.ExchangeBaseURL = "" }, wantErr: ErrInvalidExchangeURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MissingEndpointAllowed(t *testing.T) {
	// Endpoint presence is enforced by the completion provider, not
	// config, so the server can start and report degraded health.
	cfg := validConfig()
	cfg.Endpoint = ""
	cfg.Deployment = ""
	cfg.APIVersion = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil for missing model endpoint", err)
	}
}

func TestAddr(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8080")
	}
}

func TestMarshalJSON_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = "super-secret-api-key-value"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	if strings.Contains(string(data), "super-secret-api-key-value") {
		t.Errorf("MarshalJSON() leaked API key: %s", data)
	}
}

func TestString_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = "short"

	s := cfg.String()
	if strings.Contains(s, "short") {
		t.Errorf("String() leaked API key: %s", s)
	}
	if !strings.Contains(s, maskedValue) {
		t.Errorf("String() = %s, want masked placeholder", s)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "short fully masked", input: "abc12345", want: maskedValue},
		{name: "long keeps edges", input: "my-long-secret-key", want: "my" + maskedValue + "ey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
