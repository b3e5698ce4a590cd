package domain

import "time"

// Animal is a single purchasable unit. Availability is binary: it flips
// true->false exactly once when an order reserves the animal and never
// flips back (no restock).
type Animal struct {
	ID          int64
	Kind        string // "sheep", "goat"
	Size        string
	WeightRange string
	Price       int64 // ETB
	ImageURL    string
	Available   bool
	CreatedAt   time.Time
}
