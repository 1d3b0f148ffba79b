// Package search filters and ranks restaurants against criteria and a location.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/cuisine"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// DefaultTopK is the result limit when none is configured.
const DefaultTopK = 10

// Query is a single search.
type Query struct {
	Criteria criteria.Criteria
	Location location.Descriptor
	Limit    int // 0 = service default
}

// Service runs searches over a read-only dataset.
type Service struct {
	data Dataset
	topK int
}

// New creates a search service.
func New(data Dataset, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{data: data, topK: topK}
}

type candidate struct {
	r        restaurant.Restaurant
	distance float64
	hits     int
}

// Search returns the ranked top results and the number of matches before the cut.
// With a center the results are ordered by distance, rating, id; without one
// by rating, keyword relevance, id. No matches is not an error.
func (s *Service) Search(ctx context.Context, q Query) ([]restaurant.Result, int, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	all, err := s.data.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load restaurants: %w", err)
	}

	center, geoFilter := q.Location.Center()
	radius := q.Location.RadiusKm()
	var box geo.BBox
	if geoFilter {
		box = geo.BoundingBox(center, radius)
	}

	matches := make([]candidate, 0, len(all))
	for _, r := range all {
		c := candidate{r: r}
		if geoFilter {
			if !box.Contains(r.Location) {
				continue
			}
			d, err := geo.Haversine(center, r.Location)
			if err != nil || d > radius {
				continue
			}
			c.distance = d
		}
		hits, ok := matchCriteria(r, q.Criteria)
		if !ok {
			continue
		}
		c.hits = hits
		matches = append(matches, c)
	}

	if geoFilter {
		slices.SortFunc(matches, byDistance)
	} else {
		slices.SortFunc(matches, byRelevance)
	}

	total := len(matches)
	metrics.SearchResults.Observe(float64(total))

	limit := q.Limit
	if limit <= 0 {
		limit = s.topK
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]restaurant.Result, len(matches))
	for i, c := range matches {
		if geoFilter {
			d := c.distance
			out[i] = restaurant.NewResult(c.r, &d)
		} else {
			out[i] = restaurant.NewResult(c.r, nil)
		}
	}
	return out, total, nil
}

// matchCriteria applies the non-geo filters and returns the keyword hit count.
func matchCriteria(r restaurant.Restaurant, c criteria.Criteria) (int, bool) {
	if c.Cuisine != nil && !cuisine.Match(r.Cuisine, *c.Cuisine) {
		return 0, false
	}
	hits := 0
	if c.Keyword != nil {
		hits = r.KeywordHits(*c.Keyword)
		if hits == 0 {
			return 0, false
		}
	}
	if c.PriceLevel != nil && r.PriceLevel != *c.PriceLevel {
		return 0, false
	}
	if c.MinRating != nil && r.Rating < *c.MinRating {
		return 0, false
	}
	return hits, true
}

func byDistance(a, b candidate) int {
	return cmp.Or(
		cmp.Compare(a.distance, b.distance),
		cmp.Compare(b.r.Rating, a.r.Rating),
		cmp.Compare(a.r.ID, b.r.ID),
	)
}

func byRelevance(a, b candidate) int {
	return cmp.Or(
		cmp.Compare(b.r.Rating, a.r.Rating),
		cmp.Compare(b.hits, a.hits),
		cmp.Compare(a.r.ID, b.r.ID),
	)
}
