package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinSecretLen is the shortest signing secret accepted outside debug mode.
const MinSecretLen = 32

// EnvFiles are loaded, when present, before the YAML file is read.
var EnvFiles = []string{".env", ".env.production"}

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		Debug          bool     `yaml:"debug"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
		RequestsPerSec float64  `yaml:"requests_per_second"`
		RequestBurst   int      `yaml:"request_burst"`
	} `yaml:"server"`
	Auth struct {
		Secret        string `yaml:"secret"`
		TokenTTL      string `yaml:"token_ttl"`
		LoginAttempts int    `yaml:"login_attempts"`
		LoginWindow   string `yaml:"login_window"`
	} `yaml:"auth"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Sessions struct {
		SweepSchedule string `yaml:"sweep_schedule"`
	} `yaml:"sessions"`
	Leaderboard struct {
		Size int `yaml:"size"`
	} `yaml:"leaderboard"`
	Geo struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"geo"`
	Log Log `yaml:"log"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads .env files, the YAML config at path and environment overrides,
// then fills defaults. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return cfg, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, err
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Server.Debug = debug
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.RequestsPerSec <= 0 {
		c.Server.RequestsPerSec = 20
	}
	if c.Server.RequestBurst <= 0 {
		c.Server.RequestBurst = 40
	}
	if c.Auth.LoginAttempts <= 0 {
		c.Auth.LoginAttempts = 10
	}
	if c.Sessions.SweepSchedule == "" {
		c.Sessions.SweepSchedule = "@every 15m"
	}
	if c.Leaderboard.Size <= 0 {
		c.Leaderboard.Size = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// SigningKey returns the token secret. In debug mode an unset secret is
// replaced by a random per-process key and generated reports true.
func (c Config) SigningKey() (key []byte, generated bool, err error) {
	if c.Auth.Secret != "" {
		if !c.Server.Debug && len(c.Auth.Secret) < MinSecretLen {
			return nil, false, fmt.Errorf("auth secret must be at least %d bytes", MinSecretLen)
		}
		return []byte(c.Auth.Secret), false, nil
	}
	if !c.Server.Debug {
		return nil, false, errors.New("auth secret not configured")
	}
	key = make([]byte, MinSecretLen)
	if _, err := rand.Read(key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
