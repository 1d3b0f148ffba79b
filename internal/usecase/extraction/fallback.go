package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/cuisine"
)

// priceWords are checked in order; the first hit wins.
var priceWords = []struct {
	level int
	words []string
}{
	{4, []string{"奢華", "頂級", "奢华", "顶级", "luxury", "fine dining"}},
	{3, []string{"高檔", "高級", "昂貴", "高档", "高级", "昂贵", "expensive", "upscale", "fancy"}},
	{1, []string{"便宜", "平價", "實惠", "平价", "实惠", "cheap", "budget", "inexpensive", "affordable"}},
	{2, []string{"中等", "中價", "中价", "moderate", "mid-range", "mid range"}},
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:評分|评分)\D{0,6}?(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(\d(?:\.\d+)?)\s*(?:顆星|颗星|星|分以上)`),
	regexp.MustCompile(`(?i)(\d(?:\.\d+)?)\s*\+?\s*stars?`),
	regexp.MustCompile(`(?i)rat(?:ed|ing)\D{0,12}?(\d(?:\.\d+)?)`),
}

// genericWords mark a request too vague to be used as a keyword.
var genericWords = []string{
	"吃", "餐廳", "餐厅", "附近", "推薦", "推荐", "什麼", "什么", "哪裡", "哪里",
	"food", "restaurant", "eat", "hungry", "near",
}

const maxKeywordRunes = 12

// Fallback extracts criteria from raw text without a model: cuisine synonyms,
// price words, rating patterns and a single-token keyword.
type Fallback struct{}

// NewFallback creates a keyword extractor.
func NewFallback() *Fallback { return &Fallback{} }

// Extract returns whatever criteria are recognizable in text.
func (f *Fallback) Extract(text string) criteria.Criteria {
	folded := strings.ToLower(strings.TrimSpace(width.Fold.String(text)))
	var c criteria.Criteria
	if folded == "" {
		return c
	}

	name, hasCuisine := cuisine.Detect(folded)
	if hasCuisine {
		c = c.WithCuisine(name)
	}

	for _, p := range priceWords {
		if containsAny(folded, p.words) {
			c = c.WithPriceLevel(p.level)
			break
		}
	}

	for _, re := range ratingPatterns {
		m := re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= criteria.MaxRating {
			c = c.WithMinRating(v)
			break
		}
	}

	if !hasCuisine && c.PriceLevel == nil && c.MinRating == nil {
		if kw, ok := singleToken(folded); ok {
			c = c.WithKeyword(kw)
		}
	}
	return c
}

func singleToken(s string) (string, bool) {
	if utf8.RuneCountInString(s) > maxKeywordRunes {
		return "", false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return "", false
		}
	}
	if containsAny(s, genericWords) {
		return "", false
	}
	return s, true
}
