package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int

	RedisAddr     string
	RedisPassword string

	// Credential policy.
	LockoutThreshold int
	LockoutDuration  time.Duration
	MinPasswordLen   int

	// Token lifetimes.
	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration
	ResetTokenTTL   time.Duration
	SessionTTL      time.Duration

	// Tolerated clock drift when checking expiry.
	ClockSkew time.Duration

	TokenBytes int

	// Login throttle (requests per second per source IP).
	LoginRate  float64
	LoginBurst int

	BootstrapDefaultClient bool
	DefaultClientSecret    string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "identra"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		DBType:        getenv("DATABASE_TYPE", "postgres"),
		DBHost:        getenv("DATABASE_HOST", "localhost"),
		DBPort:        getenv("DATABASE_PORT", "5432"),
		DBName:        getenv("DATABASE_NAME", "identra"),
		DBUser:        getenv("DATABASE_USER", "postgres"),
		DBPassword:    getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:     getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn: getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn: getenvInt("DATABASE_MAX_OPEN_CONN", 25),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		LockoutThreshold: getenvInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  getenvDuration("LOCKOUT_DURATION", 15*time.Minute),
		MinPasswordLen:   getenvInt("MIN_PASSWORD_LENGTH", 8),

		AuthCodeTTL:     getenvDuration("AUTH_CODE_TTL", 5*time.Minute),
		AccessTokenTTL:  getenvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getenvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		IDTokenTTL:      getenvDuration("ID_TOKEN_TTL", time.Hour),
		ResetTokenTTL:   getenvDuration("RESET_TOKEN_TTL", time.Hour),
		SessionTTL:      getenvDuration("SESSION_TTL", 7*24*time.Hour),

		ClockSkew: getenvDuration("CLOCK_SKEW", 5*time.Second),

		TokenBytes: getenvInt("TOKEN_BYTES", 32),

		LoginRate:  getenvFloat("LOGIN_RATE", 2),
		LoginBurst: getenvInt("LOGIN_BURST", 10),

		BootstrapDefaultClient: getenvBool("BOOTSTRAP_DEFAULT_CLIENT", true),
		DefaultClientSecret:    getenv("DEFAULT_CLIENT_SECRET", "admin-secret"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
