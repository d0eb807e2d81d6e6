package domain

import "time"

// MarketplaceItem is a listing whose stock is returned when an order
// referencing it is cancelled.
type MarketplaceItem struct {
	MarketItemID string    `json:"marketItemId"`
	Quantity     int       `json:"quantity"`
	IsAvailable  bool      `json:"isAvailable"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ItemPatch adds Added units to the stored quantity. Stores apply it as a
// single increment so concurrent restocks of one item never lose units.
type ItemPatch struct {
	Added       int
	IsAvailable bool
	UpdatedAt   time.Time
}

// Restock returns the write that puts qty units back on the shelf.
func Restock(qty int, now time.Time) ItemPatch {
	return ItemPatch{
		Added:       qty,
		IsAvailable: true,
		UpdatedAt:   now,
	}
}

// Apply returns m with the patch applied.
func (m MarketplaceItem) Apply(p ItemPatch) MarketplaceItem {
	m.Quantity += p.Added
	m.IsAvailable = p.IsAvailable
	m.UpdatedAt = p.UpdatedAt
	return m
}

type RestockResult string

const (
	Restored RestockResult = "restored"
	Skipped  RestockResult = "skipped"
)

// RestockReport counts lines that were put back and lines that had to be
// skipped because the item was missing or the store failed.
type RestockReport struct {
	Restored int
	Skipped  int
}
