package service

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/config"
)

const refreshCookieName = "sitefolio_refresh"

var ErrMisconfigured = errors.New("auth config invalid")

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// AuthSettings is AuthConfig after parsing and validation.
type AuthSettings struct {
	SigningKeys     map[string][]byte
	ActiveKeyID     string
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	BcryptCost      int
	HashConcurrency int
	Lockout         auth.LockoutPolicy
	AllowSignup     bool
	Cookie          CookieConfig
	LoginRateMax    int
	LoginRateWindow time.Duration
}

func ParseAuthSettings(cfg config.AuthConfig) (AuthSettings, error) {
	var keys map[string][]byte
	switch {
	case strings.TrimSpace(cfg.JWTSigningKeys) != "":
		parsed, err := auth.ParseKeyring(cfg.JWTSigningKeys)
		if err != nil {
			return AuthSettings{}, fmt.Errorf("%w: %v", ErrMisconfigured, err)
		}
		keys = parsed
	case cfg.JWTSecret != "":
		// JWT_SECRET는 파싱하지 않고 그대로 사용
		keys = map[string][]byte{auth.DefaultKeyID: []byte(cfg.JWTSecret)}
	default:
		return AuthSettings{}, fmt.Errorf("%w: JWT_SIGNING_KEYS or JWT_SECRET is required", ErrMisconfigured)
	}

	accessTTL, err := parseTTL(cfg.JWTAccessTTL, auth.DefaultAccessTTL)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}
	refreshTTL, err := parseTTL(cfg.JWTRefreshTTL, 7*24*time.Hour)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}
	if refreshTTL <= accessTTL {
		return AuthSettings{}, fmt.Errorf("%w: JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL", ErrMisconfigured)
	}

	cost, err := parseInt(cfg.BcryptCost, auth.DefaultHashCost)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid BCRYPT_COST", ErrMisconfigured)
	}
	concurrency, err := parseInt(cfg.HashConcurrency, 0)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid HASH_CONCURRENCY", ErrMisconfigured)
	}

	threshold, err := parseInt(cfg.LockThreshold, auth.DefaultLockThreshold)
	if err != nil || threshold <= 0 || threshold > auth.MaxFailedAttempts {
		return AuthSettings{}, fmt.Errorf("%w: invalid LOGIN_LOCK_THRESHOLD", ErrMisconfigured)
	}
	lockBase, err := parseTTL(cfg.LockBaseDuration, auth.DefaultBaseLockDuration)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid LOGIN_LOCK_BASE", ErrMisconfigured)
	}

	allowSignup, err := parseBool(cfg.AllowSignup, true)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}
	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}
	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return AuthSettings{}, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}
	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/api/v1/auth"
	}

	rateMax, err := parseInt(cfg.LoginRateLimitMax, 20)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid LOGIN_RATE_LIMIT_MAX", ErrMisconfigured)
	}
	rateWindow, err := parseTTL(cfg.LoginRateWindow, time.Minute)
	if err != nil {
		return AuthSettings{}, fmt.Errorf("%w: invalid LOGIN_RATE_LIMIT_WINDOW", ErrMisconfigured)
	}

	return AuthSettings{
		SigningKeys:     keys,
		ActiveKeyID:     strings.TrimSpace(cfg.JWTActiveKeyID),
		Issuer:          cfg.JWTIssuer,
		AccessTTL:       accessTTL,
		RefreshTTL:      refreshTTL,
		BcryptCost:      cost,
		HashConcurrency: concurrency,
		Lockout: auth.LockoutPolicy{
			Threshold:    threshold,
			BaseDuration: lockBase,
		},
		AllowSignup: allowSignup,
		Cookie: CookieConfig{
			Name:     refreshCookieName,
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
			MaxAge:   int(refreshTTL.Seconds()),
		},
		LoginRateMax:    rateMax,
		LoginRateWindow: rateWindow,
	}, nil
}

// parseTTL accepts "15m", "7d" style values and anything time.ParseDuration takes.
func parseTTL(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if exp, err := auth.ParseExpiry(value); err == nil {
		if ttl, ok := exp.TTL(); ok {
			return ttl, nil
		}
		return 0, fmt.Errorf("absolute time %q where a duration is expected", value)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", value)
	}
	return d, nil
}

func parseInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return n, nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteStrictMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}
