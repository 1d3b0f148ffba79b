// Package place resolves free-text addresses against a static gazetteer.
package place

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
)

// Place is a named area with a representative center.
type Place struct {
	Name     string    `yaml:"name"`
	Aliases  []string  `yaml:"aliases"`
	Location geo.Point `yaml:"location"`
}

type entry struct {
	key   string
	point geo.Point
}

// Gazetteer geocodes addresses by matching known place names.
type Gazetteer struct {
	entries []entry
}

// NewGazetteer indexes places by their normalized names and aliases.
func NewGazetteer(places []Place) (*Gazetteer, error) {
	g := &Gazetteer{}
	for _, p := range places {
		if err := p.Location.Validate(); err != nil {
			return nil, fmt.Errorf("place %q: %w", p.Name, err)
		}
		for _, name := range append([]string{p.Name}, p.Aliases...) {
			if key := normalize(name); key != "" {
				g.entries = append(g.entries, entry{key: key, point: p.Location})
			}
		}
	}
	return g, nil
}

// Len returns the number of indexed names.
func (g *Gazetteer) Len() int { return len(g.entries) }

// Geocode resolves an address: exact name first, then the longest known name
// contained in the address, then the shortest known name containing it.
func (g *Gazetteer) Geocode(ctx context.Context, address string) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, fmt.Errorf("geocode: %w", err)
	}
	q := normalize(address)
	if q == "" {
		return geo.Point{}, fmt.Errorf("%w: empty address", domain.ErrGeocodeUnavailable)
	}

	for _, e := range g.entries {
		if e.key == q {
			return e.point, nil
		}
	}

	best, bestLen := -1, 0
	for i, e := range g.entries {
		if strings.Contains(q, e.key) && len(e.key) > bestLen {
			best, bestLen = i, len(e.key)
		}
	}
	if best >= 0 {
		return g.entries[best].point, nil
	}

	best, bestLen = -1, 0
	for i, e := range g.entries {
		if strings.Contains(e.key, q) && (best < 0 || len(e.key) < bestLen) {
			best, bestLen = i, len(e.key)
		}
	}
	if best >= 0 {
		return g.entries[best].point, nil
	}
	return geo.Point{}, fmt.Errorf("%w: no match for %q", domain.ErrGeocodeUnavailable, address)
}

var variants = strings.NewReplacer("臺", "台")

func normalize(s string) string {
	s = variants.Replace(width.Fold.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
