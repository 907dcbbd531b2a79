package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"runbookhub_session"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	ProjectID   string `envconfig:"PROJECT_ID" required:"true"`
	ProjectName string `envconfig:"PROJECT_NAME" default:""`

	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("project id must be provided")
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = cfg.ProjectID
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
