package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisLoginCodeLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisLoginCodeLimiter
		if !l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisLoginCodeLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "disc:logincode:rl:",
		}
		if l.Allow(context.Background(), "   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisLoginCodeLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "disc:logincode:rl:",
		}
		if !l.Allow(context.Background(), " User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "disc:logincode:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisLoginCodeAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisLoginCodeLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "disc:logincode:rl:",
		}
		if l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisLoginCodeLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    3,
			prefix: "disc:logincode:rl:",
		}
		if !l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestMemoryLoginCodeLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewLoginCodeLimiter(time.Minute, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "User@Example.com") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, " user@example.com ") {
		t.Fatalf("fourth request in the window should be denied")
	}
	if !l.Allow(ctx, "other@example.com") {
		t.Fatalf("keys must be limited independently")
	}
	if l.Allow(ctx, "") {
		t.Fatalf("empty key must be rejected")
	}
}

func TestMemoryLoginCodeLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	l := NewLoginCodeLimiter(30*time.Millisecond, 1)
	if !l.Allow(ctx, "a@b.c") {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow(ctx, "a@b.c") {
		t.Fatalf("second request should be denied")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow(ctx, "a@b.c") {
		t.Fatalf("request after the window should be allowed")
	}
}
