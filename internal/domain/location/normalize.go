package location

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
)

type inputKind int

const (
	inputEmpty inputKind = iota
	inputText
	inputObject
	inputUnparseable
)

// Input is a raw request location before normalization.
type Input struct {
	kind   inputKind
	text   string
	fields map[string]any
}

// Empty is the absent location.
func Empty() Input { return Input{} }

// FromText wraps a string location.
func FromText(s string) Input { return Input{kind: inputText, text: s} }

// FromObject wraps a decoded JSON object location.
func FromObject(fields map[string]any) Input { return Input{kind: inputObject, fields: fields} }

// FromPoint wraps explicit coordinates.
func FromPoint(p geo.Point) Input {
	return FromObject(map[string]any{"latitude": p.Lat, "longitude": p.Lon})
}

// ParseInput classifies a raw JSON value: null or absent, string, object, or anything else.
func ParseInput(raw json.RawMessage) Input {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Empty()
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Input{kind: inputUnparseable}
		}
		return FromText(s)
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return Input{kind: inputUnparseable}
		}
		return FromObject(fields)
	default:
		return Input{kind: inputUnparseable}
	}
}

// IsEmpty reports whether no location was supplied.
func (in Input) IsEmpty() bool {
	return in.kind == inputEmpty || (in.kind == inputText && strings.TrimSpace(in.text) == "")
}

var (
	pairPattern    = regexp.MustCompile(`^\s*([-+]?\d+(?:\.\d+)?)\s*,\s*([-+]?\d+(?:\.\d+)?)\s*$`)
	labeledPattern = regexp.MustCompile(`(?i)^\s*lat(?:itude)?\s*[:=]\s*([-+]?\d+(?:\.\d+)?)\s*[,;\s]\s*(?:lng|lon|longitude)\s*[:=]\s*([-+]?\d+(?:\.\d+)?)\s*$`)
)

// Normalizer turns raw location input into a Descriptor.
type Normalizer struct {
	defaultRadiusKm float64
}

// NewNormalizer creates a normalizer. Unresolved descriptors use defaultRadiusKm.
func NewNormalizer(defaultRadiusKm float64) *Normalizer {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultRadiusKm
	}
	return &Normalizer{defaultRadiusKm: defaultRadiusKm}
}

// Normalize classifies the input. It fails with ErrInvalidLocation only for an
// object whose coordinate fields are missing, non-numeric or out of range.
func (n *Normalizer) Normalize(in Input) (Descriptor, error) {
	switch in.kind {
	case inputObject:
		return n.fromObject(in.fields)
	case inputText:
		return n.fromText(in.text), nil
	default:
		return Unresolved(n.defaultRadiusKm), nil
	}
}

func (n *Normalizer) fromText(raw string) Descriptor {
	text := strings.TrimSpace(width.Fold.String(raw))
	if text == "" {
		return Unresolved(n.defaultRadiusKm)
	}

	candidate := text
	if rest, ok := cutPrefixFold(candidate, "coords:"); ok {
		candidate = rest
	}
	if p, ok := parsePair(candidate); ok {
		if d, err := Coordinates(p); err == nil {
			return d
		}
	}
	return Address(strings.TrimSpace(raw))
}

func parsePair(s string) (geo.Point, bool) {
	m := pairPattern.FindStringSubmatch(s)
	if m == nil {
		m = labeledPattern.FindStringSubmatch(s)
	}
	if m == nil {
		return geo.Point{}, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func (n *Normalizer) fromObject(fields map[string]any) (Descriptor, error) {
	lat, err := numberField(fields, "latitude", "lat")
	if err != nil {
		return Descriptor{}, err
	}
	lon, err := numberField(fields, "longitude", "lon", "lng")
	if err != nil {
		return Descriptor{}, err
	}
	d, err := Coordinates(geo.Point{Lat: lat, Lon: lon})
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", domain.ErrInvalidLocation, err)
	}
	return d, nil
}

func numberField(fields map[string]any, keys ...string) (float64, error) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch x := v.(type) {
		case float64:
			return x, nil
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return 0, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidLocation, k)
			}
			return f, nil
		case int:
			return float64(x), nil
		default:
			return 0, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidLocation, k)
		}
	}
	return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidLocation, keys[0])
}
