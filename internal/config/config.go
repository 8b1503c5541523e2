// ABOUTME: Configuration for the hbx client and fake management server.
// ABOUTME: Loads .env files, an optional YAML file, then HBX_* environment overrides.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures `hbx serve`.
type ServerConfig struct {
	Port                  string `yaml:"port" validate:"required,numeric"`
	DBPath                string `yaml:"db_path"`
	JWTSecret             string `yaml:"jwt_secret" validate:"required,min=32"`
	TokenExpiryHours      int    `yaml:"token_expiry_hours" validate:"gte=1"`
	AdminUsername         string `yaml:"admin_username" validate:"required"`
	AdminPassword         string `yaml:"admin_password" validate:"required"`
	ServiceMode           bool   `yaml:"service_mode"`
	RecommendChildBridges bool   `yaml:"recommend_child_bridges"`
	RestartDelayMS        int    `yaml:"restart_delay_ms" validate:"gte=0"`
}

// ClientConfig configures the commands that talk to a server.
type ClientConfig struct {
	URL            string `yaml:"url" validate:"required,url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Concurrency    int    `yaml:"concurrency" validate:"gte=0,lte=64"` // 0 means no cap
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=1"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns a configuration usable against a local `hbx serve`.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  "8581",
			JWTSecret:             "hbx-development-secret-change-me-please",
			TokenExpiryHours:      8,
			AdminUsername:         "admin",
			AdminPassword:         "admin",
			ServiceMode:           true,
			RecommendChildBridges: true,
			RestartDelayMS:        1500,
		},
		Client: ClientConfig{
			URL:            "http://localhost:8581",
			Username:       "admin",
			Password:       "admin",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. An empty path falls back to DefaultPath; a
// missing default file is not an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultPath is $XDG_CONFIG_HOME/hbx/config.yaml, or ~/.config/hbx/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hbx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "hbx", "config.yaml")
}

var validate = validator.New()

// Validate checks struct tags on every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%s: failed %q check", strings.ToLower(first.Namespace()), first.Tag())
		}
		return err
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenExpiry returns the lifetime of issued access tokens.
func (s *ServerConfig) TokenExpiry() time.Duration {
	return time.Duration(s.TokenExpiryHours) * time.Hour
}

// RestartDelay is how long a simulated child bridge stays pending on restart.
func (s *ServerConfig) RestartDelay() time.Duration {
	return time.Duration(s.RestartDelayMS) * time.Millisecond
}

func loadDotEnv() {
	for _, p := range []string{".env", "../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("HBX_PORT", &cfg.Server.Port)
	setString("HBX_DB_PATH", &cfg.Server.DBPath)
	setString("HBX_JWT_SECRET", &cfg.Server.JWTSecret)
	setString("HBX_ADMIN_USERNAME", &cfg.Server.AdminUsername)
	setString("HBX_ADMIN_PASSWORD", &cfg.Server.AdminPassword)
	setBool("HBX_SERVICE_MODE", &cfg.Server.ServiceMode)
	setBool("HBX_RECOMMEND_CHILD_BRIDGES", &cfg.Server.RecommendChildBridges)

	setString("HBX_URL", &cfg.Client.URL)
	setString("HBX_USERNAME", &cfg.Client.Username)
	setString("HBX_PASSWORD", &cfg.Client.Password)
	setInt("HBX_CONCURRENCY", &cfg.Client.Concurrency)

	setString("HBX_LOG_LEVEL", &cfg.Logging.Level)
	setString("HBX_LOG_FORMAT", &cfg.Logging.Format)
}
