package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	limiter := NewRateLimiter(rdb, "rl:test:", 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("hit %d: allowed=%v err=%v", i, allowed, err)
		}
	}

	allowed, retry, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("4th hit should be rejected")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry %s", retry)
	}

	// 다른 IP는 별도 카운터
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatalf("other key should be allowed")
	}

	// 창이 지나면 초기화
	mr.FastForward(time.Minute + time.Second)
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatalf("should be allowed after the window resets")
	}
}
