package geo

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/tablefinder/internal/domain"
)

// EarthRadiusKm is the mean radius of Earth used for Haversine distance.
const EarthRadiusKm = 6371.0

const kmPerDegreeLat = math.Pi * EarthRadiusKm / 180

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"latitude" yaml:"latitude"`
	Lon float64 `json:"longitude" yaml:"longitude"`
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Validate returns ErrInvalidCoordinate for NaN, infinite or out-of-range values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || !ValidateCoordinates(p.Lat, p.Lon) {
		return fmt.Errorf("%w: (%v, %v)", domain.ErrInvalidCoordinate, p.Lat, p.Lon)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lon)
}

// Haversine returns the great-circle distance in kilometers between two points.
func Haversine(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return haversine(a, b), nil
}

func haversine(a, b Point) float64 {
	lat1r := a.Lat * math.Pi / 180
	lat2r := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// BBox is a latitude/longitude rectangle. MinLon may be below -180 or MaxLon
// above 180 when the box crosses the antimeridian.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a rectangle that contains every point within radiusKm of center.
// It is a conservative pre-filter: exact distance must still be checked.
func BoundingBox(center Point, radiusKm float64) BBox {
	if radiusKm < 0 {
		radiusKm = 0
	}
	dLat := radiusKm / kmPerDegreeLat

	box := BBox{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
	}

	// Near the poles one degree of longitude shrinks to nothing.
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if box.MinLat <= -90 || box.MaxLat >= 90 || cosLat < 1e-9 {
		box.MinLon, box.MaxLon = -180, 180
		return box
	}

	dLon := dLat / cosLat
	if dLon >= 180 {
		box.MinLon, box.MaxLon = -180, 180
		return box
	}
	box.MinLon = center.Lon - dLon
	box.MaxLon = center.Lon + dLon
	return box
}

// Contains reports whether p lies inside the box.
func (b BBox) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	for _, lon := range [3]float64{p.Lon, p.Lon + 360, p.Lon - 360} {
		if lon >= b.MinLon && lon <= b.MaxLon {
			return true
		}
	}
	return false
}
