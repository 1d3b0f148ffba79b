package search

import (
	"context"

	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
)

// Dataset provides the restaurants to rank.
type Dataset interface {
	All(ctx context.Context) ([]restaurant.Restaurant, error)
}
