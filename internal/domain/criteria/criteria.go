// Package criteria holds the accumulated search preferences of a conversation.
package criteria

import (
	"fmt"
	"strings"
	"time"
)

// Price level bounds.
const (
	MinPriceLevel = 1
	MaxPriceLevel = 5
	MaxRating     = 5.0
)

// Criteria is a set of optional search constraints. Nil fields are unset.
type Criteria struct {
	Cuisine    *string    `json:"cuisine,omitempty"`
	Keyword    *string    `json:"keyword,omitempty"`
	PriceLevel *int       `json:"price_level,omitempty"`
	MinRating  *float64   `json:"min_rating,omitempty"`
	Time       *time.Time `json:"time,omitempty"`
}

// WithCuisine returns a copy with Cuisine set. Blank values unset the field.
func (c Criteria) WithCuisine(s string) Criteria {
	c.Cuisine = nonBlank(s)
	return c
}

// WithKeyword returns a copy with Keyword set. Blank values unset the field.
func (c Criteria) WithKeyword(s string) Criteria {
	c.Keyword = nonBlank(s)
	return c
}

// WithPriceLevel returns a copy with PriceLevel set.
func (c Criteria) WithPriceLevel(level int) Criteria {
	c.PriceLevel = &level
	return c
}

// WithMinRating returns a copy with MinRating set.
func (c Criteria) WithMinRating(r float64) Criteria {
	c.MinRating = &r
	return c
}

// WithTime returns a copy with Time set.
func (c Criteria) WithTime(t time.Time) Criteria {
	c.Time = &t
	return c
}

func nonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Merge overlays next onto c key by key: every field set in next replaces the
// one in c, unset fields keep their previous values.
func (c Criteria) Merge(next Criteria) Criteria {
	out := c.Clone()
	if next.Cuisine != nil {
		v := *next.Cuisine
		out.Cuisine = &v
	}
	if next.Keyword != nil {
		v := *next.Keyword
		out.Keyword = &v
	}
	if next.PriceLevel != nil {
		v := *next.PriceLevel
		out.PriceLevel = &v
	}
	if next.MinRating != nil {
		v := *next.MinRating
		out.MinRating = &v
	}
	if next.Time != nil {
		v := *next.Time
		out.Time = &v
	}
	return out
}

// Clone returns a deep copy.
func (c Criteria) Clone() Criteria {
	var out Criteria
	if c.Cuisine != nil {
		v := *c.Cuisine
		out.Cuisine = &v
	}
	if c.Keyword != nil {
		v := *c.Keyword
		out.Keyword = &v
	}
	if c.PriceLevel != nil {
		v := *c.PriceLevel
		out.PriceLevel = &v
	}
	if c.MinRating != nil {
		v := *c.MinRating
		out.MinRating = &v
	}
	if c.Time != nil {
		v := *c.Time
		out.Time = &v
	}
	return out
}

// IsEmpty reports whether no field is set.
func (c Criteria) IsEmpty() bool {
	return !c.IsActionable() && c.Time == nil
}

// IsActionable reports whether at least one search filter is set.
func (c Criteria) IsActionable() bool {
	return c.Cuisine != nil || c.Keyword != nil || c.PriceLevel != nil || c.MinRating != nil
}

// Validate checks field ranges.
func (c Criteria) Validate() error {
	if c.PriceLevel != nil && (*c.PriceLevel < MinPriceLevel || *c.PriceLevel > MaxPriceLevel) {
		return fmt.Errorf("price_level must be between %d and %d, got %d", MinPriceLevel, MaxPriceLevel, *c.PriceLevel)
	}
	if c.MinRating != nil && (*c.MinRating < 0 || *c.MinRating > MaxRating) {
		return fmt.Errorf("min_rating must be between 0 and %.0f, got %v", MaxRating, *c.MinRating)
	}
	return nil
}

// String renders the set fields for logs and prompts.
func (c Criteria) String() string {
	var parts []string
	if c.Cuisine != nil {
		parts = append(parts, "cuisine="+*c.Cuisine)
	}
	if c.Keyword != nil {
		parts = append(parts, "keyword="+*c.Keyword)
	}
	if c.PriceLevel != nil {
		parts = append(parts, fmt.Sprintf("price_level=%d", *c.PriceLevel))
	}
	if c.MinRating != nil {
		parts = append(parts, fmt.Sprintf("min_rating=%.1f", *c.MinRating))
	}
	if c.Time != nil {
		parts = append(parts, "time="+c.Time.Format(time.RFC3339))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, " ")
}
