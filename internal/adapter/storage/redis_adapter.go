package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/betselot/herdstore/internal/core/domain"
)

const (
	animalKeyPrefix       = "animal:"
	confirmationKeyPrefix = "confirm:"

	idempotencyKeyTTL  = 24 * time.Hour
	confirmationKeyTTL = 24 * time.Hour
)

// reserveAnimalScript flips a 1/0 availability flag atomically. A missing
// key reads as unavailable; the gate is seeded from the store at boot.
var reserveAnimalScript = redis.NewScript(`
local key = KEYS[1]

local current = redis.call('GET', key)
if not current then
	return 0
end

if tonumber(current) == 1 then
	redis.call('SET', key, 0)
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) ReserveAnimal(ctx context.Context, animalID int64) (bool, error) {
	key := animalKey(animalID)

	result, err := reserveAnimalScript.Run(ctx, r.client, []string{key}).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseAnimal(ctx context.Context, animalID int64) error {
	return r.client.Set(ctx, animalKey(animalID), 1, 0).Err()
}

func (r *RedisAdapter) SeedAvailability(ctx context.Context, animalID int64, available bool) error {
	v := 0
	if available {
		v = 1
	}
	return r.client.Set(ctx, animalKey(animalID), v, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) CacheConfirmation(ctx context.Context, eventID string, conf domain.OrderConfirmation) error {
	payload, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}
	return r.client.Set(ctx, confirmationKeyPrefix+eventID, payload, confirmationKeyTTL).Err()
}

func (r *RedisAdapter) GetConfirmation(ctx context.Context, eventID string) (*domain.OrderConfirmation, error) {
	payload, err := r.client.Get(ctx, confirmationKeyPrefix+eventID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conf domain.OrderConfirmation
	if err := json.Unmarshal(payload, &conf); err != nil {
		return nil, fmt.Errorf("unmarshal confirmation: %w", err)
	}
	return &conf, nil
}

func animalKey(animalID int64) string {
	return fmt.Sprintf("%s%d", animalKeyPrefix, animalID)
}
