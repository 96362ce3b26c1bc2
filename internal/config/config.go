package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal  = "local"
	BackendHosted = "hosted"
)

// Config is resolved once in main and passed down; nothing re-reads the
// environment mid-request.
type Config struct {
	Port     string
	BaseURL  string
	Env      string
	LogLevel string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBUrl      string
	DBMaxConns int

	MigrationsPath string

	RedisHost string
	RedisPort string
	RedisDB   int

	SessionTTL    time.Duration
	SessionCookie string

	AuthBackend string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	ZeptoToken    string
	ZeptoFromAddr string
	ZeptoFromName string

	CognitoRegion     string
	CognitoUserPoolID string
	CognitoClientID   string

	StaticDir string
}

func LoadConfig() *Config {
	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("HTTP_PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "essaybros"),
		DBPassword: getEnv("DB_PASSWORD", "essaybros"),
		DBName:     getEnv("DB_NAME", "essaybros"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/migration/migrations"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		SessionTTL:    getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionCookie: getEnv("SESSION_COOKIE", "eb_session"),

		AuthBackend: getEnv("AUTH_BACKEND", BackendLocal),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", "Essay Bros <no-reply@essaybros.com>"),

		ZeptoToken:    getEnv("ZEPTOMAIL_TOKEN", ""),
		ZeptoFromAddr: getEnv("ZEPTOMAIL_FROM_EMAIL", "noreply@essaybros.com"),
		ZeptoFromName: getEnv("ZEPTOMAIL_FROM_NAME", "Essay Bros"),

		CognitoRegion:     getEnv("COGNITO_REGION", ""),
		CognitoUserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:   getEnv("COGNITO_CLIENT_ID", ""),

		StaticDir: getEnv("STATIC_DIR", "web"),
	}

	cfg.DBUrl = cfg.getDBUrl()
	cfg.BaseURL = getEnv("BASE_URL", "http://localhost:"+cfg.Port)

	return cfg
}

func (cfg *Config) IsProduction() bool {
	return cfg.Env == "production"
}

func (cfg *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
}

func (cfg *Config) getDBUrl() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
