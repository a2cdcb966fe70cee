package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestClaimScriptsCompile(t *testing.T) {
	if claimScript == nil || releaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestClaimOnce_ValidatesArguments(t *testing.T) {
	if _, err := ClaimOnce(context.Background(), nil, "k", time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseClaim(context.Background(), nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestClaimOnce_AgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer rdb.Close()

	if ok, err := ClaimOnce(ctx, rdb, "k", time.Minute); err != nil || !ok {
		t.Fatalf("expected first claim, got %v %v", ok, err)
	}
	if ok, err := ClaimOnce(ctx, rdb, "k", time.Minute); err != nil || ok {
		t.Fatalf("expected second claim to be rejected, got %v %v", ok, err)
	}
	if err := ReleaseClaim(ctx, rdb, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("k") {
		t.Fatalf("expected key to be deleted")
	}
	if ok, err := ClaimOnce(ctx, rdb, "k", time.Minute); err != nil || !ok {
		t.Fatalf("expected claim after release, got %v %v", ok, err)
	}
}
