package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port" env:"SERVER_PORT" validate:"required,numeric"`
		Mode            string        `yaml:"mode" env:"SERVER_MODE" validate:"oneof=development production test"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	} `yaml:"server"`

	Database struct {
		Host            string        `yaml:"host" env:"DB_HOST" validate:"required"`
		Port            string        `yaml:"port" env:"DB_PORT" validate:"required,numeric"`
		User            string        `yaml:"user" env:"DB_USER" validate:"required"`
		Password        string        `yaml:"password" env:"DB_PASSWORD"`
		DBName          string        `yaml:"dbname" env:"DB_NAME" validate:"required"`
		SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxConns        int           `yaml:"max_conns" env:"DB_MAX_CONNS" validate:"gt=0"`
		MinConns        int           `yaml:"min_conns" env:"DB_MIN_CONNS" validate:"gte=0,ltefield=MaxConns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" validate:"gt=0"`
		TxTimeout       time.Duration `yaml:"tx_timeout" env:"DB_TX_TIMEOUT" validate:"gt=0"`
		MigrationsDir   string        `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR" validate:"required"`
	} `yaml:"database"`

	// Redis is optional. With an empty Addr sessions are kept in process memory.
	Redis struct {
		Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
		Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB             int           `yaml:"db" env:"REDIS_DB" validate:"gte=0"`
		KeyPrefix      string        `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
		BreakerTimeout time.Duration `yaml:"breaker_timeout" env:"REDIS_BREAKER_TIMEOUT"`
	} `yaml:"redis"`

	Session struct {
		CookieName   string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" validate:"required"`
		CookieSecure bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE"`
		TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" validate:"gt=0"`
		PendingTTL   time.Duration `yaml:"pending_ttl" env:"SESSION_PENDING_TTL" validate:"gt=0"`
	} `yaml:"session"`

	// OAuth is optional. Without a client id the sign-in routes answer 503.
	OAuth struct {
		ClientID     string   `yaml:"client_id" env:"OAUTH_CLIENT_ID"`
		ClientSecret string   `yaml:"client_secret" env:"OAUTH_CLIENT_SECRET" validate:"required_with=ClientID"`
		RedirectURL  string   `yaml:"redirect_url" env:"OAUTH_REDIRECT_URL" validate:"required_with=ClientID"`
		AuthURL      string   `yaml:"auth_url" env:"OAUTH_AUTH_URL" validate:"omitempty,url"`
		TokenURL     string   `yaml:"token_url" env:"OAUTH_TOKEN_URL" validate:"omitempty,url"`
		JWKSURL      string   `yaml:"jwks_url" env:"OAUTH_JWKS_URL" validate:"omitempty,url"`
		Issuers      []string `yaml:"issuers" env:"OAUTH_ISSUERS"`
		HostedDomain string   `yaml:"hosted_domain" env:"OAUTH_HOSTED_DOMAIN"`
	} `yaml:"oauth"`

	App struct {
		SelectRolePath string `yaml:"select_role_path" env:"APP_SELECT_ROLE_PATH" validate:"required"`
		DashboardPath  string `yaml:"dashboard_path" env:"APP_DASHBOARD_PATH" validate:"required"`
	} `yaml:"app"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json text"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file, an optional .env file and
// environment variables, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.ReadTimeout = 10 * time.Second
	config.Server.WriteTimeout = 10 * time.Second
	config.Server.ShutdownTimeout = 10 * time.Second

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "campusreg"
	config.Database.SSLMode = "disable"
	config.Database.MaxConns = 20
	config.Database.MinConns = 2
	config.Database.ConnMaxLifetime = time.Hour
	config.Database.TxTimeout = 5 * time.Second
	config.Database.MigrationsDir = "migrations"

	config.Redis.KeyPrefix = "campusreg:"
	config.Redis.BreakerTimeout = 5 * time.Second

	config.Session.CookieName = "campus_sid"
	config.Session.TTL = 12 * time.Hour
	config.Session.PendingTTL = 15 * time.Minute

	config.OAuth.AuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
	config.OAuth.TokenURL = "https://oauth2.googleapis.com/token"
	config.OAuth.JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	config.OAuth.Issuers = []string{"https://accounts.google.com", "accounts.google.com"}

	config.App.SelectRolePath = "/select-role"
	config.App.DashboardPath = "/dashboard"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}
	if config.OAuth.ClientID != "" {
		for _, raw := range []string{config.OAuth.RedirectURL, config.OAuth.AuthURL, config.OAuth.TokenURL, config.OAuth.JWKSURL} {
			if _, err := url.ParseRequestURI(raw); err != nil {
				return fmt.Errorf("oauth endpoint %q: %w", raw, err)
			}
		}
	}
	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     "/" + c.Database.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}

// OAuthEnabled reports whether an identity provider is configured
func (c *Config) OAuthEnabled() bool {
	return c.OAuth.ClientID != ""
}
