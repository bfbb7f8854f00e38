package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"storefront"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"4000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTExpire time.Duration `env:"JWT_EXPIRE" envDefault:"168h"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	CloudinaryURL string `env:"CLOUDINARY_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@storefront.local"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`

	// Requests per second allowed per client on login, register and password routes.
	// Zero disables the limit.
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	switch c.DBDriver {
	case "postgres", "pq", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive")
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}
	return nil
}
