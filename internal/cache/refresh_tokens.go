package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/model"
)

const (
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshKeyPrefix = "rt:"

	fieldPrincipal = "pid"
	fieldKind      = "kind"
	fieldPublicID  = "public_id"
	fieldDevice    = "device"
	fieldValid     = "valid"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRotated  int64 = 1
	rotateStatusMismatch int64 = 2
)

// KEYS[1] old token key, KEYS[2] new token key
// ARGV[1] presented device, ARGV[2] ttl in milliseconds
// Reply: {status, field, value, ...} with the old record's fields for both
// rotated and mismatch.
//
// The old key is deleted before the new one is written, all inside one
// script, so the two tokens are never valid at the same time.
const rotateRefreshScript = `
local valid = redis.call("HGET", KEYS[1], "valid")
if not valid or valid ~= "1" then
  return {0}
end

local device = redis.call("HGET", KEYS[1], "device")
local fields = redis.call("HGETALL", KEYS[1])
redis.call("DEL", KEYS[1])

local status = 2
if device == ARGV[1] then
  status = 1
  redis.call("HSET", KEYS[2], unpack(fields))
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end

local out = {status}
for i = 1, #fields do
  out[#out + 1] = fields[i]
end
return out
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RefreshTokenStore keeps refresh tokens in Redis, keyed by a hash of the
// token value. Records expire on their own through the key TTL.
type RefreshTokenStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewRefreshTokenStore(client redis.UniversalClient, ttl time.Duration) *RefreshTokenStore {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshTokenStore{redis: client, ttl: ttl}
}

func (s *RefreshTokenStore) TTL() time.Duration { return s.ttl }

func refreshKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return refreshKeyPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *RefreshTokenStore) Register(ctx context.Context, token string, rec model.RefreshRecord) error {
	key := refreshKey(token)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		fieldPrincipal, strconv.FormatInt(rec.PrincipalID, 10),
		fieldKind, string(rec.Kind),
		fieldPublicID, rec.PublicID,
		fieldDevice, rec.Device,
		fieldValid, "1",
	)
	pipe.PExpire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return auth.Unavailable("register refresh token", err)
	}
	return nil
}

// Rotate consumes oldToken and binds a fresh token to the same principal
// and device with a full TTL. A device mismatch burns the old token and
// returns its record alongside ErrDeviceMismatch.
func (s *RefreshTokenStore) Rotate(ctx context.Context, oldToken, device string) (string, model.RefreshRecord, error) {
	newToken, err := auth.NewRefreshToken()
	if err != nil {
		return "", model.RefreshRecord{}, fmt.Errorf("generate refresh token: %w", err)
	}

	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{refreshKey(oldToken), refreshKey(newToken)},
		device, s.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return "", model.RefreshRecord{}, auth.Unavailable("rotate refresh token", err)
	}
	if len(res) == 0 {
		return "", model.RefreshRecord{}, auth.Unavailable("rotate refresh token", errors.New("empty script reply"))
	}

	status, _ := res[0].(int64)
	switch status {
	case rotateStatusRotated:
		rec, err := decodeRecord(res[1:])
		if err != nil {
			return "", model.RefreshRecord{}, err
		}
		return newToken, rec, nil
	case rotateStatusMismatch:
		rec, err := decodeRecord(res[1:])
		if err != nil {
			log.Printf("[RefreshToken] mismatch on corrupt record: %v", err)
			return "", model.RefreshRecord{}, auth.ErrDeviceMismatch
		}
		return "", rec, auth.ErrDeviceMismatch
	default:
		return "", model.RefreshRecord{}, auth.ErrTokenNotFound
	}
}

// Revoke deletes the token. Deleting an absent token is not an error.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, refreshKey(token)).Err(); err != nil {
		return auth.Unavailable("revoke refresh token", err)
	}
	return nil
}

// Lookup reads a record without consuming it.
func (s *RefreshTokenStore) Lookup(ctx context.Context, token string) (model.RefreshRecord, error) {
	values, err := s.redis.HGetAll(ctx, refreshKey(token)).Result()
	if err != nil {
		return model.RefreshRecord{}, auth.Unavailable("lookup refresh token", err)
	}
	if len(values) == 0 || values[fieldValid] != "1" {
		return model.RefreshRecord{}, auth.ErrTokenNotFound
	}
	return recordFromMap(values)
}

func decodeRecord(pairs []interface{}) (model.RefreshRecord, error) {
	values := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		v, _ := pairs[i+1].(string)
		values[k] = v
	}
	return recordFromMap(values)
}

func recordFromMap(values map[string]string) (model.RefreshRecord, error) {
	id, err := strconv.ParseInt(values[fieldPrincipal], 10, 64)
	if err != nil {
		return model.RefreshRecord{}, fmt.Errorf("corrupt refresh record: %w", err)
	}
	return model.RefreshRecord{
		PrincipalID: id,
		Kind:        model.Kind(values[fieldKind]),
		PublicID:    values[fieldPublicID],
		Device:      values[fieldDevice],
		Valid:       values[fieldValid] == "1",
	}, nil
}
