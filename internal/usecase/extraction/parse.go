package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/cuisine"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// modelOutput is the JSON shape the system prompt asks for.
type modelOutput struct {
	Cuisine    *string  `json:"cuisine"`
	Keyword    *string  `json:"keyword"`
	PriceLevel *float64 `json:"price_level"`
	MinRating  *float64 `json:"min_rating"`
	FollowUp   *string  `json:"follow_up"`
}

// findJSON returns the JSON object embedded in text: a fenced block first,
// otherwise the first balanced {...} span.
func findJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseOutput decodes the model JSON. Wrong field types are an ErrAIServiceError;
// out-of-range numbers are dropped.
func parseOutput(raw string) (criteria.Criteria, string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var out modelOutput
	if err := dec.Decode(&out); err != nil {
		return criteria.Criteria{}, "", fmt.Errorf("%w: decode model output: %w", domain.ErrAIServiceError, err)
	}

	var c criteria.Criteria
	if out.Cuisine != nil {
		c = c.WithCuisine(cuisine.Canonical(*out.Cuisine))
	}
	if out.Keyword != nil {
		c = c.WithKeyword(*out.Keyword)
	}
	if out.PriceLevel != nil {
		level := int(math.Round(*out.PriceLevel))
		if level >= criteria.MinPriceLevel && level <= criteria.MaxPriceLevel {
			c = c.WithPriceLevel(level)
		}
	}
	if out.MinRating != nil && *out.MinRating >= 0 && *out.MinRating <= criteria.MaxRating {
		c = c.WithMinRating(*out.MinRating)
	}

	var followUp string
	if out.FollowUp != nil {
		followUp = strings.TrimSpace(*out.FollowUp)
	}
	return c, followUp, nil
}
