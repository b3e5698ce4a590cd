package port

import (
	"context"

	"github.com/betselot/herdstore/internal/core/domain"
)

type CacheRepository interface {
	// ReserveAnimal atomically flips the cached availability flag for the
	// animal, returns false if it is already taken (or unknown to the cache)
	ReserveAnimal(ctx context.Context, animalID int64) (bool, error)

	// ReleaseAnimal restores the cached flag (for rollback on store failure)
	ReleaseAnimal(ctx context.Context, animalID int64) error

	// SeedAvailability syncs the cached flag from the store at startup
	SeedAvailability(ctx context.Context, animalID int64, available bool) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a provisional idempotency key after a failed
	// attempt so a redelivery of the same event is processed, not suppressed
	ReleaseIdempotency(ctx context.Context, key string) error

	// CacheConfirmation stores a committed confirmation for duplicate replay
	CacheConfirmation(ctx context.Context, eventID string, conf domain.OrderConfirmation) error

	// GetConfirmation returns nil when no confirmation is cached for eventID
	GetConfirmation(ctx context.Context, eventID string) (*domain.OrderConfirmation, error)
}
