package restaurant

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
)

// Restaurant is an immutable dataset entry.
type Restaurant struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Cuisine     string    `yaml:"cuisine"`
	Location    geo.Point `yaml:"location"`
	Rating      float64   `yaml:"rating"`
	PriceLevel  int       `yaml:"price_level"`
	Tags        []string  `yaml:"tags"`
	Address     string    `yaml:"address"`
	Phone       string    `yaml:"phone"`
	Description string    `yaml:"description"`
}

// Validate checks a dataset entry.
func (r Restaurant) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("restaurant %s: name is required", r.ID)
	}
	if err := r.Location.Validate(); err != nil {
		return fmt.Errorf("restaurant %s: %w", r.ID, err)
	}
	if r.Rating < 0 || r.Rating > criteria.MaxRating || math.IsNaN(r.Rating) {
		return fmt.Errorf("restaurant %s: rating must be between 0 and 5, got %v", r.ID, r.Rating)
	}
	if r.PriceLevel < criteria.MinPriceLevel || r.PriceLevel > criteria.MaxPriceLevel {
		return fmt.Errorf("restaurant %s: price_level must be between %d and %d, got %d",
			r.ID, criteria.MinPriceLevel, criteria.MaxPriceLevel, r.PriceLevel)
	}
	return nil
}

// KeywordHits counts how many searchable fields contain keyword (case-insensitive).
func (r Restaurant) KeywordHits(keyword string) int {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return 0
	}
	hits := 0
	if strings.Contains(strings.ToLower(r.Name), k) {
		hits++
	}
	if strings.Contains(strings.ToLower(r.Cuisine), k) {
		hits++
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), k) {
			hits++
			break
		}
	}
	if strings.Contains(strings.ToLower(r.Description), k) {
		hits++
	}
	return hits
}

// Result is a ranked recommendation.
type Result struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Cuisine    string   `json:"cuisine"`
	Rating     float64  `json:"rating"`
	PriceLevel int      `json:"price_level"`
	Tags       []string `json:"tags"`
	Address    string   `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// NewResult builds a result. A nil distance means no reference location.
func NewResult(r Restaurant, distanceKm *float64) Result {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	res := Result{
		ID:         r.ID,
		Name:       r.Name,
		Cuisine:    r.Cuisine,
		Rating:     r.Rating,
		PriceLevel: r.PriceLevel,
		Tags:       tags,
		Address:    r.Address,
		Phone:      r.Phone,
		Latitude:   r.Location.Lat,
		Longitude:  r.Location.Lon,
	}
	if distanceKm != nil {
		d := math.Round(*distanceKm*100) / 100
		res.DistanceKm = &d
	}
	return res
}
