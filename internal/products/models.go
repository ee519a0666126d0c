package products

import "time"

// Product is a tracked URL plus its latest known commercial state.
// Aggregates are widened on every successful refresh; after any update
// lowest <= current <= highest holds.
type Product struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	CurrentPrice float64   `json:"currentPrice"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	LastChecked  time.Time `json:"lastChecked"`
	CreatedAt    time.Time `json:"createdAt"`
	HighestPrice *float64  `json:"highestPrice"` // nullable in legacy rows
	LowestPrice  *float64  `json:"lowestPrice"`  // nullable in legacy rows

	// PriceChange is computed from the two most recent observations at
	// read time; nil until a product has at least two of them. Never
	// persisted.
	PriceChange *float64 `json:"priceChange"`
}

// PriceObservation is one timestamped price reading for a Product.
// Observations are append-only: created once per refresh, never mutated.
type PriceObservation struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Result pairs a product with its full observation history, the shape
// returned by tracking and single-product reads.
type Result struct {
	Product Product            `json:"product"`
	History []PriceObservation `json:"priceHistory"`
}
