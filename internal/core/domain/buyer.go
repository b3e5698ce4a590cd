package domain

import "time"

// Buyer is a store customer. Identity key is TelegramID (unique); profiles
// are upserted by the transport layer or the /users/upsert endpoint before
// an order is placed.
type Buyer struct {
	ID         int64
	TelegramID string
	Name       string
	Phone      string
	Language   string
	CreatedAt  time.Time
}
