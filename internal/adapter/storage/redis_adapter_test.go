package storage

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-sync/internal/core/domain"
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

func TestRedisAdapter_PutAndGet(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, articleKey(9001))

	// Miss
	got, err := adapter.GetArticle(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}

	art := domain.Article{Sku: 9001, Name: "Widget", Quantity: 10, Version: 1, UpdatedAt: testTime}
	if err := adapter.PutArticle(ctx, art); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = adapter.GetArticle(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Quantity != 10 || got.Version != 1 {
		t.Errorf("expected cached article, got %+v", got)
	}

	ttl := client.PTTL(ctx, articleKey(9001)).Val()
	if ttl <= 0 {
		t.Errorf("expected a ttl on the cached article, got %v", ttl)
	}
}

func TestRedisAdapter_IgnoresOlderVersion(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, articleKey(9002))

	newer := domain.Article{Sku: 9002, Name: "Widget", Quantity: 15, Version: 3}
	older := domain.Article{Sku: 9002, Name: "Widget", Quantity: 10, Version: 2}

	if err := adapter.PutArticle(ctx, newer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.PutArticle(ctx, older); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := adapter.GetArticle(ctx, 9002)
	if got == nil || got.Version != 3 {
		t.Errorf("expected version 3 to stay cached, got %+v", got)
	}
}

func TestRedisAdapter_Invalidate(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	adapter.PutArticle(ctx, domain.Article{Sku: 9003, Name: "Widget", Version: 1})
	if err := adapter.Invalidate(ctx, 9003); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := adapter.GetArticle(ctx, 9003)
	if got != nil {
		t.Errorf("expected miss after invalidate, got %+v", got)
	}
}

func TestRedisAdapter_ConcurrentPutsKeepNewest(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, articleKey(9004))

	var wg sync.WaitGroup
	for v := 1; v <= 50; v++ {
		wg.Add(1)
		go func(version int) {
			defer wg.Done()
			art := domain.Article{Sku: 9004, Name: "Widget", Quantity: version, Version: version}
			if err := adapter.PutArticle(ctx, art); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(v)
	}
	wg.Wait()

	got, _ := adapter.GetArticle(ctx, 9004)
	if got == nil || got.Version != 50 {
		t.Errorf("expected version 50 to win, got %+v", got)
	}
}
