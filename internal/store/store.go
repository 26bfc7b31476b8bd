// Package store persists analyzed submissions and serves the sorted, bounded
// reads behind the dashboard, trending, and export views.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrUnavailable indicates the backing database could not be reached or
	// the operation failed for a transient reason.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when an item id does not exist.
	ErrNotFound = errors.New("item not found")
)

// Store is the persistence contract consumed by the cluster service and the
// read views.
type Store interface {
	// Create persists a new item, assigning its ID and Timestamp.
	Create(ctx context.Context, item *Item) error

	// GetByIDs returns the current state of the given items. Missing ids are
	// skipped, not an error.
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)

	// ApplyClusterPatch relabels the given items with the cluster id and
	// template and increments each one's variations counter by 1. The writes
	// are a single batch statement but carry no cross-item transactional
	// guarantee at this contract level.
	ApplyClusterPatch(ctx context.Context, ids []string, clusterID, template string) error

	// IncrementUpvotes atomically adds 1 to an item's upvote counter and
	// returns the new value. Returns ErrNotFound for unknown ids.
	IncrementUpvotes(ctx context.Context, id string) (int64, error)

	// Find runs a sorted, bounded read.
	Find(ctx context.Context, q Query) ([]Item, error)

	// Totals computes the global detection count and upvote sum in one
	// aggregate pass.
	Totals(ctx context.Context) (Totals, error)

	// Close releases the underlying connection.
	Close() error
}
