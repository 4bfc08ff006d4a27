package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitefolio/backend/internal/auth"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	redis  redis.UniversalClient
	prefix string
	max    int64
	window time.Duration
}

func NewRateLimiter(client redis.UniversalClient, prefix string, max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

// KEYS[1] counter key, ARGV[1] window in milliseconds
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`

var fixedWindowLua = redis.NewScript(fixedWindowScript)

// Allow counts one hit for key. When the budget is spent it returns false
// and how long until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := fixedWindowLua.Run(ctx, l.redis, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, auth.Unavailable("rate limit", err)
	}
	if len(res) != 2 {
		return false, 0, auth.Unavailable("rate limit", fmt.Errorf("unexpected script reply %v", res))
	}

	if res[0] > l.max {
		retry := time.Duration(res[1]) * time.Millisecond
		if retry < time.Second {
			retry = time.Second
		}
		return false, retry, nil
	}
	return true, 0, nil
}
