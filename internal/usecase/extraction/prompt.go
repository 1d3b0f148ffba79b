package extraction

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/cuisine"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
)

var systemPrompt = template.Must(template.New("system").Parse(`You are a restaurant search assistant. Read the conversation and the latest user message and extract search criteria.

Respond with ONLY one JSON object, no prose:
{"cuisine": string|null, "keyword": string|null, "price_level": integer 1-5|null, "min_rating": number 0-5|null, "follow_up": string|null}

Rules:
- cuisine: prefer one of: {{.Cuisines}}.
- keyword: a dish or feature the user asked for (e.g. ramen, rooftop), not a cuisine.
- price_level: 1 = cheap, 2 = moderate, 3 = upscale, 4 = expensive, 5 = luxury.
- Only fill fields the user actually expressed. Leave others null.
- If nothing searchable can be extracted and the known preferences are empty, set follow_up to one short clarifying question written in {{.Language}}.

User location: {{.Location}}
Known preferences: {{.Criteria}}
{{- if .Time}}
Requested time: {{.Time}}
{{- end}}
`))

type promptData struct {
	Cuisines string
	Language string
	Location string
	Criteria string
	Time     string
}

func buildSystemPrompt(loc location.Descriptor, prior criteria.Criteria, lang string) (string, error) {
	data := promptData{
		Cuisines: strings.Join(cuisine.Names(), ", "),
		Language: lang,
		Location: describeLocation(loc),
		Criteria: prior.String(),
	}
	if prior.Time != nil {
		data.Time = prior.Time.Format("2006-01-02 15:04 MST")
	}

	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

func describeLocation(loc location.Descriptor) string {
	switch loc.Kind() {
	case location.KindCoordinates:
		c, _ := loc.Center()
		return fmt.Sprintf("coordinates %s, search radius %.0f km", c, loc.RadiusKm())
	case location.KindAddress:
		return fmt.Sprintf("address %q, search radius %.0f km", loc.Address(), loc.RadiusKm())
	default:
		return "unknown"
	}
}
