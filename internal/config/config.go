// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds every setting the server and its workers read at startup.
type Config struct {
	Env  string `mapstructure:"ENV"`
	Port string `mapstructure:"PORT"`

	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSLMODE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins string        `mapstructure:"CORS_ORIGINS"`

	GatewayBaseURL       string        `mapstructure:"GATEWAY_BASE_URL"`
	GatewayAPIKey        string        `mapstructure:"GATEWAY_API_KEY"`
	GatewaySecretKey     string        `mapstructure:"GATEWAY_SECRET_KEY"`
	GatewayContractCode  string        `mapstructure:"GATEWAY_CONTRACT_CODE"`
	GatewaySourceAccount string        `mapstructure:"GATEWAY_SOURCE_ACCOUNT"`
	GatewayRedirectURL   string        `mapstructure:"GATEWAY_REDIRECT_URL"`
	GatewayTimeout       time.Duration `mapstructure:"GATEWAY_TIMEOUT"`

	MinTransferAmount  string        `mapstructure:"MIN_TRANSFER_AMOUNT"`
	LimitsTimezone     string        `mapstructure:"LIMITS_TIMEZONE"`
	TransferRateLimit  int           `mapstructure:"TRANSFER_RATE_LIMIT"`
	TransferRateWindow time.Duration `mapstructure:"TRANSFER_RATE_WINDOW"`

	SweepSchedule     string        `mapstructure:"SWEEP_SCHEDULE"`
	SweepPendingAfter time.Duration `mapstructure:"SWEEP_PENDING_AFTER"`
	FundingExpiry     time.Duration `mapstructure:"FUNDING_EXPIRY"`
}

var keys = []string{
	"ENV", "PORT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_IDLE_CONNS", "DB_MAX_OPEN_CONNS", "DB_CONN_MAX_LIFETIME",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL",
	"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
	"GATEWAY_BASE_URL", "GATEWAY_API_KEY", "GATEWAY_SECRET_KEY", "GATEWAY_CONTRACT_CODE",
	"GATEWAY_SOURCE_ACCOUNT", "GATEWAY_REDIRECT_URL", "GATEWAY_TIMEOUT",
	"MIN_TRANSFER_AMOUNT", "LIMITS_TIMEZONE", "TRANSFER_RATE_LIMIT", "TRANSFER_RATE_WINDOW",
	"SWEEP_SCHEDULE", "SWEEP_PENDING_AFTER", "FUNDING_EXPIRY",
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load binds the environment into a Config, applying defaults for anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ledgerpay")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("GATEWAY_BASE_URL", "https://sandbox.monnify.com")
	v.SetDefault("GATEWAY_TIMEOUT", 30*time.Second)
	v.SetDefault("MIN_TRANSFER_AMOUNT", "10")
	v.SetDefault("LIMITS_TIMEZONE", "Africa/Lagos")
	v.SetDefault("TRANSFER_RATE_LIMIT", 10)
	v.SetDefault("TRANSFER_RATE_WINDOW", time.Minute)
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("SWEEP_PENDING_AFTER", 15*time.Minute)
	v.SetDefault("FUNDING_EXPIRY", 24*time.Hour)

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction checks if the app runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// MinimumTransfer parses MIN_TRANSFER_AMOUNT, falling back to 10 on bad input.
func (c Config) MinimumTransfer() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.MinTransferAmount))
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(10)
	}
	return d
}

// Location resolves LIMITS_TIMEZONE, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LimitsTimezone)
	if err != nil {
		log.Printf("invalid LIMITS_TIMEZONE %q, using UTC: %v", c.LimitsTimezone, err)
		return time.UTC
	}
	return loc
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
