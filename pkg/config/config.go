package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/spf13/pflag"
)

// EnvPrefix selects the environment variables that override file values.
// STUDYTRACK_DATABASE__PASSWORD maps to database.password.
const EnvPrefix = "STUDYTRACK_"

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	HTTP      HTTPConfig      `koanf:"http"`
	Auth      AuthConfig      `koanf:"auth"`
	Logging   LoggingConfig   `koanf:"logging"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Reminders RemindersConfig `koanf:"reminders"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=postgres sqlite"`
	Host     string `koanf:"host"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	Port     int    `koanf:"port" validate:"gte=0,lte=65535"`
	SSLMode  string `koanf:"sslmode"`
	// Path is the SQLite file used when Driver is "sqlite".
	Path string `koanf:"path"`
}

type TelegramConfig struct {
	Token   string `koanf:"token"`
	Enabled bool   `koanf:"enabled"`
}

type HTTPConfig struct {
	Addr           string   `koanf:"addr" validate:"required"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type AuthConfig struct {
	Secret   string        `koanf:"secret"`
	Issuer   string        `koanf:"issuer" validate:"required"`
	Audience []string      `koanf:"audience" validate:"required,min=1"`
	TokenTTL time.Duration `koanf:"token_ttl"`
}

type LoggingConfig struct {
	Level     string `koanf:"level"`
	File      string `koanf:"file"`
	GormLevel string `koanf:"gorm_level"`
}

type ScoringConfig struct {
	// SameDayReward is "full" (every session grants the base reward) or
	// "none" (repeat sessions with no day gap grant nothing).
	SameDayReward string `koanf:"same_day_reward" validate:"oneof=full none"`
}

type RemindersConfig struct {
	Enabled bool `koanf:"enabled"`
}

var AppConfig = Defaults()

var validate = validator.New()

// Defaults returns the values used for keys missing from every source.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "study-tracker.db",
		},
		Telegram: TelegramConfig{Enabled: true},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth: AuthConfig{
			Issuer:   "study-tracker",
			Audience: []string{"study-tracker"},
			TokenTTL: 24 * time.Hour,
		},
		Scoring:   ScoringConfig{SameDayReward: "full"},
		Reminders: RemindersConfig{Enabled: true},
	}
}

// LoadConfig reads filename plus environment overrides into AppConfig.
func LoadConfig(filename string) error {
	return Load(filename, nil)
}

// Load layers filename, .env, STUDYTRACK_* variables and the changed flags
// of flags (may be nil), validates the result and stores it in AppConfig.
func Load(filename string, flags *pflag.FlagSet) error {
	k := koanf.New(".")

	if strings.TrimSpace(filename) != "" {
		// The YAML parser also accepts JSON documents.
		if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
			logger.Error("failed to read config file", "file", filename, "error", err)
			return err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to load .env file", "error", err)
		return err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		logger.Error("failed to read environment overrides", "error", err)
		return err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			logger.Error("failed to read command-line flags", "error", err)
			return err
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		logger.Error("failed to decode config", "error", err)
		return err
	}
	cfg.HTTP.AllowedOrigins = splitList(cfg.HTTP.AllowedOrigins)
	cfg.Auth.Audience = splitList(cfg.Auth.Audience)

	if err := validate.Struct(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		return fmt.Errorf("invalid config: %w", err)
	}

	AppConfig = cfg
	return nil
}

func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}

// splitList expands comma separated entries, which is how list values
// arrive from environment variables.
func splitList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
