// Package restaurant serves the read-only restaurant dataset.
package restaurant

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
)

// Repo holds the dataset in memory. It is immutable after construction and
// safe for concurrent readers without locking.
type Repo struct {
	items []restaurant.Restaurant
	byID  map[string]int
}

// New copies the given restaurants into a repository.
func New(items []restaurant.Restaurant) *Repo {
	r := &Repo{
		items: make([]restaurant.Restaurant, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(r.items, items)
	for i, it := range r.items {
		r.byID[it.ID] = i
	}
	return r
}

// All returns every restaurant. Callers must not modify the returned slice.
func (r *Repo) All(ctx context.Context) ([]restaurant.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.items, nil
}

// Get returns a restaurant by id.
func (r *Repo) Get(_ context.Context, id string) (restaurant.Restaurant, error) {
	i, ok := r.byID[id]
	if !ok {
		return restaurant.Restaurant{}, fmt.Errorf("restaurant %q: %w", id, domain.ErrNotFound)
	}
	return r.items[i], nil
}

// Count returns the dataset size.
func (r *Repo) Count() int { return len(r.items) }

// HealthCheck reports an empty dataset as unhealthy.
func (r *Repo) HealthCheck(_ context.Context) error {
	if len(r.items) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	return nil
}
