package config

import (
	"os"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Slack    SlackConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Sentry   SentryConfig
}

// APIKeys gates every /api route with X-API-Key. Empty disables the check.
// TrustedProxies lists the proxies whose X-Forwarded-For is believed; empty
// means the socket address is the client IP.
type ServerConfig struct {
	Port             string
	AllowedOrigins   []string
	AllowCredentials bool
	APIKeys          []string
	TrustedProxies   []string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	URL        string
	Host       string
	Port       string
	Password   string
	DB         string
	MaxRetries string
}

// AuthConfig is kept as raw strings; NewAuthService parses and validates it.
type AuthConfig struct {
	JWTSigningKeys    string
	JWTSecret         string
	JWTActiveKeyID    string
	JWTIssuer         string
	JWTAccessTTL      string
	JWTRefreshTTL     string
	BcryptCost        string
	HashConcurrency   string
	LockThreshold     string
	LockBaseDuration  string
	AllowSignup       string
	CookiePath        string
	CookieDomain      string
	CookieSecure      string
	CookieSameSite    string
	LoginRateLimitMax string
	LoginRateWindow   string
	AdminEmail        string
	AdminPassword     string
	AdminNickname     string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:             getenv("PORT", "8080"),
			AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			AllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "true") == "true",
			APIKeys:          splitList(os.Getenv("SECRET_KEY")),
			TrustedProxies:   splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:        os.Getenv("REDIS_URL"),
			Host:       getenv("REDIS_HOST", "localhost"),
			Port:       getenv("REDIS_PORT", "6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getenv("REDIS_DB", "0"),
			MaxRetries: getenv("REDIS_MAX_RETRIES", "5"),
		},
		Auth: AuthConfig{
			JWTSigningKeys:    os.Getenv("JWT_SIGNING_KEYS"),
			JWTSecret:         os.Getenv("JWT_SECRET"),
			JWTActiveKeyID:    os.Getenv("JWT_ACTIVE_KID"),
			JWTIssuer:         getenv("JWT_ISSUER", "sitefolio"),
			JWTAccessTTL:      getenv("JWT_ACCESS_TTL", "1h"),
			JWTRefreshTTL:     getenv("JWT_REFRESH_TTL", "7d"),
			BcryptCost:        getenv("BCRYPT_COST", "10"),
			HashConcurrency:   os.Getenv("HASH_CONCURRENCY"),
			LockThreshold:     getenv("LOGIN_LOCK_THRESHOLD", "5"),
			LockBaseDuration:  getenv("LOGIN_LOCK_BASE", "30m"),
			AllowSignup:       getenv("ALLOW_SIGNUP", "true"),
			CookiePath:        getenv("AUTH_COOKIE_PATH", "/api/v1/auth"),
			CookieDomain:      os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookieSecure:      getenv("AUTH_COOKIE_SECURE", "true"),
			CookieSameSite:    getenv("AUTH_COOKIE_SAMESITE", "strict"),
			LoginRateLimitMax: getenv("LOGIN_RATE_LIMIT_MAX", "20"),
			LoginRateWindow:   getenv("LOGIN_RATE_LIMIT_WINDOW", "1m"),
			AdminEmail:        os.Getenv("ADMIN_EMAIL"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminNickname:     getenv("ADMIN_NICKNAME", "admin"),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: getenv("APP_ENV", "development"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
