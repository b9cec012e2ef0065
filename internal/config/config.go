// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (CAMBIO_* plus explicit secret binds)
//  2. Config file (./cambio.yaml or ~/.cambio/config.yaml)
//  3. Defaults
//
// Sensitive values (the model API key) are masked in MarshalJSON and
// String so a Config can be logged without leaking secrets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidPort indicates the listen port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidSessionTTL indicates the session TTL is not positive.
	ErrInvalidSessionTTL = errors.New("invalid session ttl")

	// ErrInvalidSweepInterval indicates the sweep interval is not positive.
	ErrInvalidSweepInterval = errors.New("invalid sweep interval")

	// ErrInvalidExchangeURL indicates the exchange-rate base URL is empty.
	ErrInvalidExchangeURL = errors.New("invalid exchange base url")
)

// Defaults for session lifecycle and external endpoints.
const (
	// DefaultSessionTTL is the sliding inactivity window after which a
	// session is eligible for eviction.
	DefaultSessionTTL = 2 * time.Hour

	// DefaultSweepInterval is how often the background sweep scans for
	// expired sessions.
	DefaultSweepInterval = 5 * time.Minute

	// DefaultExchangeBaseURL is the public exchange-rate API.
	DefaultExchangeBaseURL = "https://api.frankfurter.dev/v1"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a
// new secret field, update MarshalJSON as well.
type Config struct {
	// Model endpoint configuration. Endpoint, Deployment and APIVersion
	// are required by the completion provider at first resolution;
	// APIKey is optional (absent = ambient platform identity).
	Endpoint   string `mapstructure:"endpoint" json:"endpoint"`
	Deployment string `mapstructure:"deployment" json:"deployment"`
	APIVersion string `mapstructure:"api_version" json:"api_version"`
	APIKey     string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON

	// Provider forces a specific backend plugin. Empty means automatic
	// selection from the credential fields; "ollama" targets a local
	// model server at Endpoint.
	Provider string `mapstructure:"provider" json:"provider"`

	// Exchange-rate API base URL.
	ExchangeBaseURL string `mapstructure:"exchange_base_url" json:"exchange_base_url"`

	// HTTP server configuration.
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Session lifecycle configuration.
	SessionTTL    time.Duration `mapstructure:"session_ttl" json:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`

	// Logging configuration.
	LogJSON bool `mapstructure:"log_json" json:"log_json"`
	Debug   bool `mapstructure:"debug" json:"debug"`
}

// Load loads configuration with the priority env > file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("cambio")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".cambio"))
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; anything else is a real error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange_base_url", DefaultExchangeBaseURL)

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("session_ttl", DefaultSessionTTL)
	v.SetDefault("sweep_interval", DefaultSweepInterval)

	v.SetDefault("log_json", false)
	v.SetDefault("debug", false)
}

// bindEnv binds environment variables explicitly rather than via
// AutomaticEnv so the accepted surface stays enumerable.
func bindEnv(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("endpoint", "CAMBIO_ENDPOINT")
	mustBind("deployment", "CAMBIO_DEPLOYMENT")
	mustBind("api_version", "CAMBIO_API_VERSION")
	mustBind("api_key", "CAMBIO_API_KEY")
	mustBind("provider", "CAMBIO_PROVIDER")
	mustBind("exchange_base_url", "CAMBIO_EXCHANGE_BASE_URL")
	mustBind("host", "CAMBIO_HOST")
	mustBind("port", "CAMBIO_PORT")
	mustBind("cors_origins", "CAMBIO_CORS_ORIGINS")
	mustBind("trust_proxy", "CAMBIO_TRUST_PROXY")
	mustBind("rate_burst", "CAMBIO_RATE_BURST")
	mustBind("session_ttl", "CAMBIO_SESSION_TTL")
	mustBind("sweep_interval", "CAMBIO_SWEEP_INTERVAL")
	mustBind("log_json", "CAMBIO_LOG_JSON")
	mustBind("debug", "CAMBIO_DEBUG")
}

// Validate checks ranges and shapes. Presence of the model endpoint
// fields is deliberately NOT checked here: the completion provider
// enforces that at first resolution so the server can still come up
// and report "degraded" on /health/detailed.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSessionTTL, c.SessionTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSweepInterval, c.SweepInterval)
	}
	if c.ExchangeBaseURL == "" {
		return ErrInvalidExchangeURL
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
