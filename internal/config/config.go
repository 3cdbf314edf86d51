package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"assessment-service/internal/domain"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Env string `yaml:"env"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Content struct {
		File            string `yaml:"file"`
		TTL             string `yaml:"ttl"`
		DefaultLanguage string `yaml:"defaultLanguage"`
	} `yaml:"content"`
	Assessment struct {
		EventConfigFile        string `yaml:"eventConfigFile"`
		ActiveConfig           string `yaml:"activeConfig"`
		DefaultAllowedAttempts int    `yaml:"defaultAllowedAttempts"`
	} `yaml:"assessment"`
	Avatar struct {
		FPS        int     `yaml:"fps"`
		Easing     float64 `yaml:"easing"`
		IdleAnchor struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
		} `yaml:"idleAnchor"`
	} `yaml:"avatar"`
	Rabbit struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbit"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
}

// Load reads YAML config from path, applies environment overrides and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// applyEnv lets deployment secrets and endpoints override the file.
func applyEnv(cfg *Config) {
	setString(&cfg.Log.Env, "LOG_ENV")
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.SQLite.Path, "ASSESSMENT_DB")
	setString(&cfg.Rabbit.URL, "RABBIT_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if raw := os.Getenv("DEFAULT_ALLOWED_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Assessment.DefaultAllowedAttempts = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Env == "" {
		cfg.Log.Env = "local"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.Content.DefaultLanguage == "" {
		cfg.Content.DefaultLanguage = "en"
	}
	if cfg.Avatar.FPS <= 0 {
		cfg.Avatar.FPS = 30
	}
	if cfg.Rabbit.Exchange == "" {
		cfg.Rabbit.Exchange = "assessment.events"
	}
}

// Validate checks that the chosen storage driver has what it needs.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("storage driver redis needs redis.addr")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("storage driver postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
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

// EventConfigFile is the YAML layout of a file of policy bundles.
type EventConfigFile struct {
	Active  string               `yaml:"active"`
	Configs []domain.EventConfig `yaml:"configs"`
}

// LoadEventConfigs reads named event configs to seed the config store.
func LoadEventConfigs(path string) (EventConfigFile, error) {
	var file EventConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}
