package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL = time.Hour
	DefaultKeyID     = "default"

	refreshTokenBytes = 32
	minSecretLength   = 32
)

var ErrInvalidExpiry = errors.New("invalid token expiry")

// Expiry is either a relative lifetime or an absolute instant, never both.
type Expiry struct {
	ttl time.Duration
	at  time.Time
}

func ExpiresIn(ttl time.Duration) Expiry { return Expiry{ttl: ttl} }

func ExpiresAt(at time.Time) Expiry { return Expiry{at: at} }

var relativeExpiry = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry accepts a single-unit relative value ("90s", "15m", "1h",
// "7d") or an RFC 3339 timestamp. Mixed units such as "1h30m" are rejected.
func ParseExpiry(value string) (Expiry, error) {
	value = strings.TrimSpace(value)
	if m := relativeExpiry.FindStringSubmatch(value); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n <= 0 {
			return Expiry{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
		}
		unit := map[string]time.Duration{
			"s": time.Second,
			"m": time.Minute,
			"h": time.Hour,
			"d": 24 * time.Hour,
		}[m[2]]
		return ExpiresIn(time.Duration(n) * unit), nil
	}
	if at, err := time.Parse(time.RFC3339, value); err == nil {
		return ExpiresAt(at), nil
	}
	return Expiry{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
}

func (e Expiry) IsZero() bool { return e.ttl == 0 && e.at.IsZero() }

// TTL returns the relative lifetime, or false for an absolute expiry.
func (e Expiry) TTL() (time.Duration, bool) {
	if !e.at.IsZero() {
		return 0, false
	}
	return e.ttl, true
}

func (e Expiry) deadline(now time.Time) (time.Time, error) {
	if !e.at.IsZero() {
		if !e.at.After(now) {
			return time.Time{}, fmt.Errorf("%w: expiry is in the past", ErrInvalidExpiry)
		}
		return e.at, nil
	}
	if e.ttl <= 0 {
		return time.Time{}, fmt.Errorf("%w: non-positive ttl", ErrInvalidExpiry)
	}
	return now.Add(e.ttl), nil
}

// Claims is the payload of an access token. Subject carries the internal
// principal id.
type Claims struct {
	PublicID string `json:"pid"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Subject identifies whom an access token is issued to.
type Subject struct {
	PrincipalID int64
	PublicID    string
	Kind        string
}

type TokenConfig struct {
	// Keys maps key ids to HMAC secrets. Every key verifies; only ActiveKeyID signs.
	Keys        map[string][]byte
	ActiveKeyID string
	Issuer      string
	AccessTTL   time.Duration
	Now         func() time.Time
}

// TokenIssuer signs and verifies access tokens. Verification needs no
// store lookup, so a token stays valid until it expires.
type TokenIssuer struct {
	keys      map[string][]byte
	activeKID string
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("at least one signing key is required")
	}
	keys := make(map[string][]byte, len(cfg.Keys))
	for kid, secret := range cfg.Keys {
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("signing key with empty kid")
		}
		if len(secret) < minSecretLength {
			return nil, fmt.Errorf("signing key %q shorter than %d bytes", kid, minSecretLength)
		}
		keys[kid] = secret
	}

	active := strings.TrimSpace(cfg.ActiveKeyID)
	if active == "" {
		if len(keys) != 1 {
			return nil, errors.New("active key id is required when more than one key is configured")
		}
		for kid := range keys {
			active = kid
		}
	}
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("active key id %q is not configured", active)
	}

	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenIssuer{
		keys:      keys,
		activeKID: active,
		issuer:    cfg.Issuer,
		accessTTL: ttl,
		now:       now,
	}, nil
}

func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// IssueAccessToken signs a token for sub. A zero Expiry uses the configured
// access TTL.
func (t *TokenIssuer) IssueAccessToken(sub Subject, exp Expiry) (string, time.Time, error) {
	if exp.IsZero() {
		exp = ExpiresIn(t.accessTTL)
	}
	now := t.now()
	expiresAt, err := exp.deadline(now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := Claims{
		PublicID: sub.PublicID,
		Kind:     sub.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.PrincipalID, 10),
			Issuer:    t.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = t.activeKID

	signed, err := token.SignedString(t.keys[t.activeKID])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// VerifyAccessToken returns the claims of a valid token, or one of
// ErrTokenExpired, ErrTokenMalformed, ErrTokenSignatureInvalid.
func (t *TokenIssuer) VerifyAccessToken(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		options = append(options, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		key, ok := t.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	if _, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}

// PrincipalID parses the subject claim.
func (c *Claims) PrincipalID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// NewRefreshToken returns an opaque 256-bit random token. It carries no
// claims and is only a lookup key.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var keyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// ParseKeyring reads "kid:secret,kid2:secret2". An entry whose text before
// the first ":" is not a valid kid is taken whole as the DefaultKeyID secret.
func ParseKeyring(value string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kid, secret, found := strings.Cut(part, ":")
		if !found || !keyIDPattern.MatchString(strings.TrimSpace(kid)) {
			kid, secret = DefaultKeyID, part
		}
		kid = strings.TrimSpace(kid)
		if _, dup := keys[kid]; dup {
			return nil, fmt.Errorf("duplicate signing key id %q", kid)
		}
		keys[kid] = []byte(strings.TrimSpace(secret))
	}
	if len(keys) == 0 {
		return nil, errors.New("no signing keys configured")
	}
	return keys, nil
}
