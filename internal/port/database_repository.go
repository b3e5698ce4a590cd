package port

import (
	"context"
	"errors"

	"github.com/betselot/herdstore/internal/core/domain"
)

var (
	// ErrAnimalUnavailable means the animal is absent or already reserved.
	// Losing the reservation race is an expected outcome, not a failure.
	ErrAnimalUnavailable = errors.New("animal unavailable")

	// ErrDuplicateEvent means the event id is already in the dedup ledger
	// and no committed order exists to replay.
	ErrDuplicateEvent = errors.New("duplicate event")
)

type DatabaseRepository interface {
	// PlaceOrder atomically records the dedup entry for eventID, reserves
	// the animal and inserts the order in a single transaction. A
	// redelivered event whose first attempt committed is returned with
	// Replayed=true and no side effects.
	PlaceOrder(ctx context.Context, eventID string, draft domain.Order) (*domain.PlacedOrder, error)

	// GetBuyerByTelegramID returns nil when no profile exists.
	GetBuyerByTelegramID(ctx context.Context, telegramID string) (*domain.Buyer, error)

	// UpsertBuyer creates or refreshes a buyer profile keyed by telegram id.
	UpsertBuyer(ctx context.Context, b domain.Buyer) (*domain.Buyer, error)

	// ListAvailableAnimals returns the catalog rows still open for sale.
	ListAvailableAnimals(ctx context.Context) ([]domain.Animal, error)

	// CreateAnimal seeds a catalog row and returns its id.
	CreateAnimal(ctx context.Context, a domain.Animal) (int64, error)

	// LatestOrders returns up to limit most recent orders, newest first.
	LatestOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error)

	// SalesByKind aggregates committed order count and revenue per kind.
	SalesByKind(ctx context.Context) ([]domain.KindStat, error)
}
