package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisCache_SetGet(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client)

	client.Del(ctx, resolverKeyPrefix+"deps:test:3:200")

	if err := cache.Set(ctx, "deps:test:3:200", []byte(`{"root":"test"}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	payload, ok, err := cache.Get(ctx, "deps:test:3:200")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(payload) != `{"root":"test"}` {
		t.Errorf("unexpected payload: %s", payload)
	}

	client.Del(ctx, resolverKeyPrefix+"deps:test:3:200")
}

func TestRedisCache_MissIsNotAnError(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	cache := NewRedisCache(client)

	_, ok, err := cache.Get(context.Background(), "deps:absent:1:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected miss for absent key")
	}
}

func TestRedisCache_EntriesExpire(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client)

	if err := cache.Set(ctx, "deps:short:1:1", []byte("x"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := client.TTL(ctx, resolverKeyPrefix+"deps:short:1:1").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Second {
		t.Errorf("expected ttl in (0, 1s], got %v", ttl)
	}

	client.Del(ctx, resolverKeyPrefix+"deps:short:1:1")
}
