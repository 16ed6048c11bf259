// Package config loads runtime settings from the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// minSecretLength is the shortest accepted session signing secret, in bytes.
const minSecretLength = 32

// Config holds every setting the tracker binaries read at startup.
type Config struct {
	Addr            string        `env:"TRACKER_ADDR"             envDefault:":8080"`
	DBPath          string        `env:"TRACKER_DB_PATH"          envDefault:"data/tracker.db"`
	SessionSecret   string        `env:"TRACKER_SESSION_SECRET"`
	SessionTTL      time.Duration `env:"TRACKER_SESSION_TTL"      envDefault:"336h"`
	CookieSecure    bool          `env:"TRACKER_COOKIE_SECURE"    envDefault:"false"`
	LogLevel        string        `env:"TRACKER_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"TRACKER_LOG_FORMAT"       envDefault:"text"`
	AuthRatePerMin  int           `env:"TRACKER_AUTH_RATE_PER_MIN" envDefault:"20"`
	AuthRateBurst   int           `env:"TRACKER_AUTH_RATE_BURST"  envDefault:"5"`
	BcryptCost      int           `env:"TRACKER_BCRYPT_COST"      envDefault:"10"`
	ShutdownTimeout time.Duration `env:"TRACKER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Dev             bool          `env:"TRACKER_DEV"              envDefault:"false"`
	TrustedProxies  []string      `env:"TRACKER_TRUSTED_PROXIES"  envSeparator:","`

	// GeneratedSecret is set when Dev mode filled in a throwaway secret.
	GeneratedSecret bool `env:"-"`
}

// Load reads an optional .env file and then parses the environment.
func Load(envFiles ...string) (Config, error) {
	return load(false, envFiles)
}

// LoadOffline is Load for tools that never sign a session, such as the
// createuser command. A missing session secret is replaced by a throwaway one.
func LoadOffline(envFiles ...string) (Config, error) {
	return load(true, envFiles)
}

func load(offline bool, envFiles []string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// A missing .env is normal outside local development.
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finalize(offline); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) finalize(offline bool) error {
	if c.SessionSecret == "" && (c.Dev || offline) {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		c.SessionSecret = secret
		c.GeneratedSecret = true
	}
	return c.Validate()
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("TRACKER_ADDR must not be empty")
	case c.DBPath == "":
		return errors.New("TRACKER_DB_PATH must not be empty")
	case c.SessionSecret == "":
		return errors.New("TRACKER_SESSION_SECRET is not set")
	case len(c.SessionSecret) < minSecretLength:
		return fmt.Errorf("TRACKER_SESSION_SECRET must be at least %d bytes", minSecretLength)
	case c.SessionTTL <= 0:
		return errors.New("TRACKER_SESSION_TTL must be positive")
	case c.AuthRatePerMin <= 0 || c.AuthRateBurst <= 0:
		return errors.New("auth rate limit settings must be positive")
	case c.BcryptCost < 4 || c.BcryptCost > 31:
		return errors.New("TRACKER_BCRYPT_COST must be between 4 and 31")
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("TRACKER_TRUSTED_PROXIES: %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
