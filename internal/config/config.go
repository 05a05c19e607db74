package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio de chat.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"agency-chat.db"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`
	AdminEmail           string `env:"ADMIN_EMAIL"`
	AdminPasswordHash    string `env:"ADMIN_PASSWORD_HASH"`

	Responder  string `env:"RESPONDER" envDefault:"canned"`
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	// NotifyEmail acepta varias casillas separadas por comas.
	NotifyEmail string `env:"NOTIFY_EMAIL"`
	ConsoleURL  string `env:"CONSOLE_URL"`

	SessionIdleTTLMinutes int  `env:"SESSION_IDLE_TTL_MINUTES" envDefault:"0"`
	MessageRateLimit      int  `env:"MESSAGE_RATE_LIMIT" envDefault:"20"`
	CookieSecure          bool `env:"COOKIE_SECURE" envDefault:"false"`

	// WSOriginPatterns lista los hosts del sitio que embebe el widget, ej. "www.agency.com,*.agency.com".
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Responder {
	case "canned":
	case "llm":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when RESPONDER=llm")
		}
	default:
		return fmt.Errorf("unknown RESPONDER %q", c.Responder)
	}
	if c.MessageRateLimit < 0 {
		return fmt.Errorf("MESSAGE_RATE_LIMIT must be >= 0")
	}
	return nil
}

// SessionIdleTTL devuelve 0 cuando el barrido de sesiones inactivas esta deshabilitado.
func (c *Config) SessionIdleTTL() time.Duration {
	if c.SessionIdleTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.SessionIdleTTLMinutes) * time.Minute
}
