package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Env      string
	Port     int
	DBDriver string
	DBURL    string

	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	JWTSecret                  string
	JWTAccessTTLMinutes        int
	JWTRefreshTTLDays          int
	JWTResetPasswordTTLMinutes int
	JWTVerifyEmailTTLMinutes   int
	BcryptCost                 int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	AppURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthRateLimit         int
	AuthRateWindowMinutes int

	CORSAllowedOrigins []string
	OTLPEndpoint       string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	return Config{
		Env:      getEnv("APP_ENV", EnvDev),
		Port:     getEnvInt("PORT", 8080),
		DBDriver: getEnv("DB_DRIVER", DriverPostgres),
		DBURL:    buildDBURL(),

		MongoURI:          getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:           getEnv("MONGO_DB", "absencehub"),
		MongoTransactions: getEnvBool("MONGO_TRANSACTIONS", false),

		JWTSecret:                  getEnv("JWT_SECRET", ""),
		JWTAccessTTLMinutes:        getEnvInt("JWT_ACCESS_EXPIRATION_MINUTES", 30),
		JWTRefreshTTLDays:          getEnvInt("JWT_REFRESH_EXPIRATION_DAYS", 30),
		JWTResetPasswordTTLMinutes: getEnvInt("JWT_RESET_PASSWORD_EXPIRATION_MINUTES", 10),
		JWTVerifyEmailTTLMinutes:   getEnvInt("JWT_VERIFY_EMAIL_EXPIRATION_MINUTES", 10),
		BcryptCost:                 getEnvInt("BCRYPT_COST", 10),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "noreply@absencehub.local"),
		AppURL:       getEnv("APP_URL", "http://localhost:3000"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthRateLimit:         getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindowMinutes: getEnvInt("AUTH_RATE_WINDOW_MINUTES", 15),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}
}

// Validate catches settings that would make the server unsafe or unable to start.
func (c Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvTest, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}

	switch c.DBDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTSecret == "" && c.Env != EnvTest {
		return errors.New("JWT_SECRET is required")
	}

	lifetimes := map[string]int{
		"JWT_ACCESS_EXPIRATION_MINUTES":         c.JWTAccessTTLMinutes,
		"JWT_REFRESH_EXPIRATION_DAYS":           c.JWTRefreshTTLDays,
		"JWT_RESET_PASSWORD_EXPIRATION_MINUTES": c.JWTResetPasswordTTLMinutes,
		"JWT_VERIFY_EMAIL_EXPIRATION_MINUTES":   c.JWTVerifyEmailTTLMinutes,
	}
	for key, v := range lifetimes {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}

	return nil
}

func (c Config) IsProd() bool { return c.Env == EnvProd }
func (c Config) IsDev() bool  { return c.Env == EnvDev }

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func (c Config) ResetPasswordTTL() time.Duration {
	return time.Duration(c.JWTResetPasswordTTLMinutes) * time.Minute
}

func (c Config) VerifyEmailTTL() time.Duration {
	return time.Duration(c.JWTVerifyEmailTTLMinutes) * time.Minute
}

func (c Config) AuthRateWindow() time.Duration {
	return time.Duration(c.AuthRateWindowMinutes) * time.Minute
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "absencehub")
	pass := getEnv("DB_PASSWORD", "absencehub")
	name := getEnv("DB_NAME", "absencehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env value, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
