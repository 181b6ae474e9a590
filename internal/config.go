package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth" validate:"required"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Mailer        MailerConfig        `mapstructure:"mailer"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type AuthConfig struct {
	SessionSecret  string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" validate:"required,min=1h"`
	CookieName     string        `mapstructure:"cookie_name" validate:"required"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	OTPExpiry      time.Duration `mapstructure:"otp_expiry" validate:"required,min=1m,max=1h"`
	OTPMaxAttempts int           `mapstructure:"otp_max_attempts" validate:"required,min=1,max=20"`
	BCryptCost     int           `mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=15"`
	EmailPolicy    string        `mapstructure:"email_policy" validate:"required"`
	DefaultRole    string        `mapstructure:"default_role"`
}

type RateLimitConfig struct {
	Window             time.Duration `mapstructure:"window"`
	OTPRequestPerEmail int           `mapstructure:"otp_request_per_email"`
	OTPRequestPerIP    int           `mapstructure:"otp_request_per_ip"`
	OTPVerifyPerEmail  int           `mapstructure:"otp_verify_per_email"`
}

type MailerConfig struct {
	Driver     string `mapstructure:"driver" validate:"omitempty,oneof=log smtp"`
	Host       string `mapstructure:"host" validate:"required_if=Driver smtp"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	MaxWorkers int    `mapstructure:"max_workers"`
	QueueSize  int    `mapstructure:"queue_size"`
}

type MaintenanceConfig struct {
	SessionSchedule string `mapstructure:"session_schedule"`
	OTPSchedule     string `mapstructure:"otp_schedule"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables (container deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			SessionSecret:  getEnv("SESSION_SECRET", ""),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			CookieName:     getEnv("SESSION_COOKIE_NAME", "innovation_session"),
			CookieSecure:   getEnv("SESSION_COOKIE_SECURE", "true") == "true",
			OTPExpiry:      getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			OTPMaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			BCryptCost:     getEnvAsInt("BCRYPT_COST", 10),
			EmailPolicy:    getEnv("EMAIL_POLICY", "all"),
			DefaultRole:    getEnv("DEFAULT_ROLE", "Submitter"),
		},
		RateLimit: RateLimitConfig{
			Window:             getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			OTPRequestPerEmail: getEnvAsInt("RATE_LIMIT_OTP_REQUEST_EMAIL", 3),
			OTPRequestPerIP:    getEnvAsInt("RATE_LIMIT_OTP_REQUEST_IP", 10),
			OTPVerifyPerEmail:  getEnvAsInt("RATE_LIMIT_OTP_VERIFY_EMAIL", 5),
		},
		Mailer: MailerConfig{
			Driver:     getEnv("MAIL_DRIVER", "log"),
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("MAIL_FROM", "no-reply@innovationportal.local"),
			MaxWorkers: getEnvAsInt("MAIL_MAX_WORKERS", 4),
			QueueSize:  getEnvAsInt("MAIL_QUEUE_SIZE", 100),
		},
		Maintenance: MaintenanceConfig{
			SessionSchedule: getEnv("MAINTENANCE_SESSION_SCHEDULE", "@hourly"),
			OTPSchedule:     getEnv("MAINTENANCE_OTP_SCHEDULE", "*/15 * * * *"),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values left by a sparse config file.
func (c *Config) ApplyDefaults() {
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "innovation_session"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Auth.OTPExpiry == 0 {
		c.Auth.OTPExpiry = 10 * time.Minute
	}
	if c.Auth.OTPMaxAttempts == 0 {
		c.Auth.OTPMaxAttempts = 5
	}
	if c.Auth.EmailPolicy == "" {
		c.Auth.EmailPolicy = "all"
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.OTPRequestPerEmail == 0 {
		c.RateLimit.OTPRequestPerEmail = 3
	}
	if c.RateLimit.OTPRequestPerIP == 0 {
		c.RateLimit.OTPRequestPerIP = 10
	}
	if c.RateLimit.OTPVerifyPerEmail == 0 {
		c.RateLimit.OTPVerifyPerEmail = 5
	}
	if c.Mailer.Driver == "" {
		c.Mailer.Driver = "log"
	}
	if c.Maintenance.SessionSchedule == "" {
		c.Maintenance.SessionSchedule = "@hourly"
	}
	if c.Maintenance.OTPSchedule == "" {
		c.Maintenance.OTPSchedule = "*/15 * * * *"
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("auth config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *AuthConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	policy := strings.TrimSpace(c.EmailPolicy)
	if policy != "all" && !strings.HasPrefix(policy, "domain:") && !strings.HasPrefix(policy, "list:") {
		return fmt.Errorf("unsupported email policy %q", c.EmailPolicy)
	}
	return nil
}
