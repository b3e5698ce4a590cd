package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the durable record of a committed purchase. Immutable once
// created except for Status. Quantity scales the price only; the animal
// itself is reserved as a single unit regardless.
type Order struct {
	ID              int64
	BuyerID         int64
	AnimalID        int64
	Quantity        int
	DeliveryAddress string
	TotalPrice      int64
	PaymentMethod   string
	Status          OrderStatus
	CreatedAt       time.Time
}

// OrderConfirmation is what a successful (or replayed) intake returns.
type OrderConfirmation struct {
	OrderID    int64       `json:"id"`
	TotalPrice int64       `json:"total_price"`
	Status     OrderStatus `json:"status"`
}

// PlacedOrder is the storage layer's result for a committed reservation.
// Replayed marks a redelivered event whose first attempt already committed.
type PlacedOrder struct {
	Confirmation OrderConfirmation
	Animal       Animal
	Replayed     bool
}

// OrderSummary is a read-model row for the admin /orders report.
type OrderSummary struct {
	ID              int64
	BuyerName       string
	BuyerTelegramID string
	AnimalKind      string
	AnimalSize      string
	Quantity        int
	TotalPrice      int64
	CreatedAt       time.Time
}

// KindStat aggregates committed sales per animal kind for /stats.
type KindStat struct {
	Kind  string
	Count int
	Total int64
}
