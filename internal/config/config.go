package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment (and
// configs/.env when present).
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"backoffice"`
	DBSslMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret       string        `envconfig:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"12h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	// Optional; enables the distributed document lock when set.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	LockTTL       time.Duration `envconfig:"DOCUMENT_LOCK_TTL" default:"10s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Timezone string `envconfig:"TIMEZONE" default:"Africa/Dakar"`
	Currency string `envconfig:"CURRENCY" default:"FCFA"`

	Company Company

	SeedAdminUsername string `envconfig:"SEED_ADMIN_USERNAME" default:"admin"`
	SeedAdminEmail    string `envconfig:"SEED_ADMIN_EMAIL" default:"admin@example.com"`
	SeedAdminPassword string `envconfig:"SEED_ADMIN_PASSWORD"`
}

// Company is printed in document headers. Fields are read from COMPANY_<NAME>.
type Company struct {
	Name    string `envconfig:"NAME" default:"Moultazam Distribution"`
	Slogan  string `envconfig:"SLOGAN" default:"Distribution & Fournitures Industrielles"`
	Address string `envconfig:"ADDRESS"`
	Phone   string `envconfig:"PHONE"`
	Phone2  string `envconfig:"PHONE2"`
	Email   string `envconfig:"EMAIL"`
	NINEA   string `envconfig:"NINEA"`
	RCCM    string `envconfig:"RCCM"`
}

// Load reads envFile (ignored when missing) and then the process environment.
func Load(envFile string) (*Config, error) {
	_ = godotenv.Load(envFile)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = "default_super_secret_key"
	}
	return &cfg, nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSslMode
}

// Location returns the configured business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
