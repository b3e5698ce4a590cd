package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/betselot/herdstore/internal/core/domain"
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

func TestReserveAnimal_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "animal:9001")
	adapter.SeedAvailability(ctx, 9001, true)

	ok, err := adapter.ReserveAnimal(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected reservation to win")
	}

	flag, _ := client.Get(ctx, "animal:9001").Int()
	if flag != 0 {
		t.Errorf("expected flag 0 after reservation, got %d", flag)
	}
}

func TestReserveAnimal_AlreadyTaken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	adapter.SeedAvailability(ctx, 9002, false)

	ok, err := adapter.ReserveAnimal(ctx, 9002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected reservation to lose")
	}
}

func TestReserveAnimal_UnknownKey(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "animal:9003")

	ok, err := adapter.ReserveAnimal(ctx, 9003)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("an unseeded animal must read as unavailable")
	}
}

func TestReserveAnimal_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	adapter.SeedAvailability(ctx, 9004, true)

	totalRequests := 50
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.ReserveAnimal(ctx, 9004)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successCount.Load())
	}
}

func TestReleaseAnimal(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	adapter.SeedAvailability(ctx, 9005, true)
	if ok, _ := adapter.ReserveAnimal(ctx, 9005); !ok {
		t.Fatal("setup reservation failed")
	}

	if err := adapter.ReleaseAnimal(ctx, 9005); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err := adapter.ReserveAnimal(ctx, 9005)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected reservation to win after release")
	}
}

func TestSetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	key := "intake:test-" + uuid.NewString()
	defer client.Del(ctx, key)

	ok, err := adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("first set should succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("second set should report the key as seen")
	}
}

func TestReleaseIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	key := "intake:test-" + uuid.NewString()
	defer client.Del(ctx, key)

	if ok, err := adapter.SetIdempotency(ctx, key); err != nil || !ok {
		t.Fatalf("first set: ok=%v err=%v", ok, err)
	}
	if err := adapter.ReleaseIdempotency(ctx, key); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err := adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("released key must admit the event again")
	}
}

func TestConfirmationCache_RoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	eventID := "test-" + uuid.NewString()
	defer client.Del(ctx, confirmationKeyPrefix+eventID)

	conf := domain.OrderConfirmation{OrderID: 42, TotalPrice: 5000, Status: domain.OrderStatusPending}
	if err := adapter.CacheConfirmation(ctx, eventID, conf); err != nil {
		t.Fatalf("cache failed: %v", err)
	}

	got, err := adapter.GetConfirmation(ctx, eventID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || *got != conf {
		t.Errorf("got %+v, want %+v", got, conf)
	}
}

func TestGetConfirmation_Missing(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	adapter := NewRedisAdapter(client)

	got, err := adapter.GetConfirmation(context.Background(), "test-missing-"+uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for uncached event, got %+v", got)
	}
}
