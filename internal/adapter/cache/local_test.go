package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/ports"
)

func TestLocalCache_GetMiss(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()

	_, err := c.Get(context.Background(), "device:missing")
	if !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestLocalCache_SetMarshalsStructs(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", map[string]int{"n": 1}, 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != `{"n":1}` {
		t.Errorf("expected JSON value, got %s", got)
	}
}

func TestLocalCache_SetNX(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	// Act
	first, err := c.SetNX(ctx, "anomaly:lock:meter-1", "1", time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _ := c.SetNX(ctx, "anomaly:lock:meter-1", "1", time.Minute)

	// Assert
	if !first {
		t.Error("expected first SetNX to acquire the key")
	}
	if second {
		t.Error("expected second SetNX to fail while key is held")
	}

	_ = c.Delete(ctx, "anomaly:lock:meter-1")
	third, _ := c.SetNX(ctx, "anomaly:lock:meter-1", "1", time.Minute)
	if !third {
		t.Error("expected SetNX to succeed after delete")
	}
}

func TestLocalCache_SetNXAfterExpiry(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	if ok, _ := c.SetNX(ctx, "lock", "1", time.Millisecond); !ok {
		t.Fatal("expected first SetNX to succeed")
	}
	time.Sleep(5 * time.Millisecond)

	ok, _ := c.SetNX(ctx, "lock", "1", time.Minute)
	if !ok {
		t.Error("expected expired key to be treated as absent")
	}
	if _, err := c.Get(ctx, "lock"); err != nil {
		t.Errorf("expected key to be readable, got %v", err)
	}
}

func TestLocalCache_CompareAndDelete(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	// Arrange
	if ok, _ := c.SetNX(ctx, "anomaly:lock:meter-1", "token-b", time.Minute); !ok {
		t.Fatal("expected SetNX to succeed")
	}

	// Act
	stale, err := c.CompareAndDelete(ctx, "anomaly:lock:meter-1", "token-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	owned, _ := c.CompareAndDelete(ctx, "anomaly:lock:meter-1", "token-b")

	// Assert
	if stale {
		t.Error("expected a mismatched token to leave the key in place")
	}
	if !owned {
		t.Error("expected the matching token to delete the key")
	}
	if _, err := c.Get(ctx, "anomaly:lock:meter-1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestLocalCache_CompareAndDeleteExpired(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	_, _ = c.SetNX(ctx, "lock", "token", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if ok, _ := c.CompareAndDelete(ctx, "lock", "token"); ok {
		t.Error("expected an expired key not to count as held")
	}
}
