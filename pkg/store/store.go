package store

import (
	"context"
	"errors"

	"github.com/nstogner/nevernood/pkg/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// WardrobeStore manages the persistence of wardrobe items.
type WardrobeStore interface {
	// Create persists a new item. The ID field must be set by the caller.
	Create(ctx context.Context, item *domain.WardrobeItem) error

	// Get retrieves an item by its unique ID.
	// Returns an error wrapping ErrNotFound if the item does not exist.
	Get(ctx context.Context, id string) (*domain.WardrobeItem, error)

	// List returns items ordered by creation time descending. A non-empty
	// category restricts the result to that category (case-insensitive).
	List(ctx context.Context, category string) ([]domain.WardrobeItem, error)

	// Delete removes an item by ID.
	// Returns an error wrapping ErrNotFound if the item does not exist.
	Delete(ctx context.Context, id string) error
}
