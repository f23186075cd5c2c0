package ratelimit_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
)

func TestNilClientFailsOpen(t *testing.T) {
	limiter := ratelimit.New(nil, time.Minute, nil, 60)
	for i := 0; i < 100; i++ {
		if res := limiter.Allow(context.Background(), "member-1", "transfer"); !res.Allowed {
			t.Fatal("expected nil-client limiter to allow everything")
		}
	}
}

func setupTestRedis(t *testing.T) *redis.Client {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/1"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("bad redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}

func TestCeilingEnforced(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	limiter := ratelimit.New(client, time.Minute, map[string]int{"withdraw": 3}, 60)
	identity := fmt.Sprintf("member-%d", time.Now().UnixNano())

	for i := 0; i < 3; i++ {
		if res := limiter.Allow(context.Background(), identity, "withdraw"); !res.Allowed {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
	}

	res := limiter.Allow(context.Background(), identity, "withdraw")
	if res.Allowed {
		t.Fatal("expected fourth request to be blocked")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("expected retry-after within the window, got %v", res.RetryAfter)
	}
}

func TestWindowAlwaysHasTTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	limiter := ratelimit.New(client, time.Minute, map[string]int{"transfer": 5}, 60)
	identity := fmt.Sprintf("member-%d", time.Now().UnixNano())
	key := fmt.Sprintf("ratelimit:%s:%s", "transfer", identity)

	// A counter left behind without a TTL must get one on the next hit, so a
	// crash between INCR and EXPIRE cannot throttle the identity forever.
	if err := client.Set(context.Background(), key, 3, 0).Err(); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	if res := limiter.Allow(context.Background(), identity, "transfer"); !res.Allowed {
		t.Fatal("request under the ceiling blocked")
	}

	ttl, err := client.TTL(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("read ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected the counter to carry a window TTL, got %v", ttl)
	}
}

func TestActionsCountedSeparately(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	limiter := ratelimit.New(client, time.Minute, map[string]int{"withdraw": 1, "transfer": 1}, 60)
	identity := fmt.Sprintf("member-%d", time.Now().UnixNano())

	if res := limiter.Allow(context.Background(), identity, "withdraw"); !res.Allowed {
		t.Fatal("withdraw blocked")
	}
	if res := limiter.Allow(context.Background(), identity, "transfer"); !res.Allowed {
		t.Fatal("transfer should have its own counter")
	}
	if res := limiter.Allow(context.Background(), identity, "withdraw"); res.Allowed {
		t.Fatal("second withdraw should be blocked")
	}
}
