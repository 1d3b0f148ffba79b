package location

import (
	"encoding/json"

	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
)

// Kind discriminates the location variants.
type Kind string

// Location kinds.
const (
	KindUnresolved  Kind = "unresolved"
	KindAddress     Kind = "address"
	KindCoordinates Kind = "coordinates"
)

// Search radii per kind, in kilometers.
const (
	CoordinatesRadiusKm = 5.0
	AddressRadiusKm     = 10.0
	DefaultRadiusKm     = 15.0
)

// Descriptor is a normalized location: exact coordinates, a free-text address
// (optionally geocoded to a center), or nothing usable.
type Descriptor struct {
	kind     Kind
	address  string
	center   geo.Point
	centered bool
	radiusKm float64
}

// Coordinates builds a coordinates descriptor with a 5 km radius.
func Coordinates(p geo.Point) (Descriptor, error) {
	if err := p.Validate(); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{kind: KindCoordinates, center: p, centered: true, radiusKm: CoordinatesRadiusKm}, nil
}

// Address builds an address descriptor with a 10 km radius and no center yet.
func Address(raw string) Descriptor {
	return Descriptor{kind: KindAddress, address: raw, radiusKm: AddressRadiusKm}
}

// Unresolved builds a descriptor for missing or unusable input.
// A non-positive radius falls back to DefaultRadiusKm.
func Unresolved(radiusKm float64) Descriptor {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return Descriptor{kind: KindUnresolved, radiusKm: radiusKm}
}

// Kind returns the variant. The zero Descriptor is unresolved.
func (d Descriptor) Kind() Kind {
	if d.kind == "" {
		return KindUnresolved
	}
	return d.kind
}

// Address returns the raw address text, empty for other kinds.
func (d Descriptor) Address() string { return d.address }

// RadiusKm returns the search radius.
func (d Descriptor) RadiusKm() float64 {
	if d.radiusKm <= 0 {
		return DefaultRadiusKm
	}
	return d.radiusKm
}

// Center returns the point to measure distances from, if one is known.
func (d Descriptor) Center() (geo.Point, bool) {
	return d.center, d.centered
}

// IsResolved reports whether the user supplied a usable location (coordinates or address).
func (d Descriptor) IsResolved() bool {
	return d.Kind() != KindUnresolved
}

// WithCenter attaches a geocoded center to an address. Other kinds are returned unchanged.
func (d Descriptor) WithCenter(p geo.Point) Descriptor {
	if d.kind != KindAddress || p.Validate() != nil {
		return d
	}
	d.center = p
	d.centered = true
	return d
}

type descriptorJSON struct {
	Type      Kind     `json:"type"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	RadiusKm  float64  `json:"search_radius_km"`
}

// MarshalJSON renders the descriptor for responses and session views.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	out := descriptorJSON{
		Type:     d.Kind(),
		Address:  d.address,
		RadiusKm: d.RadiusKm(),
	}
	if d.centered {
		lat, lon := d.center.Lat, d.center.Lon
		out.Latitude, out.Longitude = &lat, &lon
	}
	return json.Marshal(out)
}
