package redis

import (
	"testing"

	"github.com/freshmandi/freshmandi-backend/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@redis.internal:6380/2"})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "redis.internal:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("orders", "abc"); got != "fm:idempotency:orders:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.LockKey("cron-worker"); got != "fm:lock:cron-worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
}
