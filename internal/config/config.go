// Package config loads application settings from an optional TOML file and
// environment variables.
package config

import (
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Session backends.
const (
	BackendCookie   = "cookie"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const secretSize = 32

var (
	// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
	ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET")

	// ErrInvalidBackend is returned for an unknown SESSION_BACKEND value.
	ErrInvalidBackend = errors.New("invalid session backend")

	// ErrMissingBackendURL is returned when a server-side backend has no connection URL.
	ErrMissingBackendURL = errors.New("missing session backend URL")

	// ErrInvalidRedirectURI is returned when the redirect URI is not an absolute URL.
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")
)

// Config is the complete application configuration.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Server   ServerConfig   `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Log      LogConfig      `toml:"log"`

	// EphemeralSecret is true when no signing secret was configured and one
	// was generated for this process.
	EphemeralSecret bool `toml:"-"`
}

// SpotifyConfig contains the OAuth client registration.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SessionConfig selects how visitor sessions are signed and stored.
type SessionConfig struct {
	Secret  string `toml:"secret"`
	Backend string `toml:"backend"`
}

// DatabaseConfig contains the Postgres connection string.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RedisConfig contains the Redis connection string.
type RedisConfig struct {
	URL string `toml:"url"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SecureCookies reports whether cookies should carry the Secure attribute,
// which is the case when the app is served over https.
func (c *Config) SecureCookies() bool {
	u, err := url.Parse(c.Spotify.RedirectURI)
	return err == nil && u.Scheme == "https"
}

// Default returns the configuration described by the embedded example file.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("parsing embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration from defaults, the TOML file at path (skipped
// when path is empty) and environment variables, in that order. The result is
// validated and a temporary signing secret is generated if none was given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.ensureSecret(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides values with any environment variables that are set.
func (c *Config) applyEnv() error {
	overrides := []struct {
		name   string
		target *string
	}{
		{"SPOTIFY_ID", &c.Spotify.ClientID},
		{"SPOTIFY_SECRET", &c.Spotify.ClientSecret},
		{"SPOTIFY_REDIRECT_URI", &c.Spotify.RedirectURI},
		{"HOST", &c.Server.Host},
		{"SESSION_SECRET", &c.Session.Secret},
		{"SESSION_BACKEND", &c.Session.Backend},
		{"DATABASE_URL", &c.Database.URL},
		{"REDIS_URL", &c.Redis.URL},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PORT: %w", err)
		}
		c.Server.Port = port
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return ErrMissingCredentials
	}

	u, err := url.Parse(c.Spotify.RedirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRedirectURI, c.Spotify.RedirectURI)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}

	switch c.Session.Backend {
	case BackendCookie, BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: postgres backend requires DATABASE_URL", ErrMissingBackendURL)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: redis backend requires REDIS_URL", ErrMissingBackendURL)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Session.Backend)
	}

	return nil
}

// ensureSecret generates a random signing secret when none is configured.
func (c *Config) ensureSecret() error {
	if c.Session.Secret != "" {
		return nil
	}

	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generating session secret: %w", err)
	}
	c.Session.Secret = string(b)
	c.EphemeralSecret = true
	return nil
}
