// Package cuisine maps multilingual cuisine names onto a small canonical vocabulary.
package cuisine

import (
	"strings"

	"golang.org/x/text/width"
)

// vocabulary lists each canonical cuisine name followed by its synonyms.
// Longer synonyms come first so that 日本料理 wins over 日本.
var vocabulary = [][]string{
	{"日式", "日本料理", "日本菜", "日式料理", "日菜", "日餐", "和食", "壽司", "拉麵", "japanese", "sushi", "ramen"},
	{"中式", "中國菜", "中華料理", "中菜", "中餐", "台菜", "chinese"},
	{"川菜", "四川菜", "麻辣", "sichuan", "szechuan"},
	{"港式", "粵菜", "港點", "cantonese", "dim sum"},
	{"韓式", "韓國料理", "韓國菜", "韓餐", "korean"},
	{"泰式", "泰國菜", "泰國料理", "thai"},
	{"越南菜", "越式", "越南料理", "vietnamese", "pho"},
	{"義大利菜", "義大利料理", "義大利", "意大利", "義式", "italian", "pasta", "pizza"},
	{"法式", "法國菜", "法國料理", "french"},
	{"美式", "美國菜", "漢堡", "american", "burger"},
	{"印度菜", "印度料理", "印度", "indian", "curry"},
}

var canonicalBySynonym = func() map[string]string {
	m := make(map[string]string)
	for _, group := range vocabulary {
		for _, s := range group {
			m[fold(s)] = group[0]
		}
	}
	return m
}()

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(width.Fold.String(s)))
}

// Canonical returns the canonical cuisine name for s, or s itself when unknown.
func Canonical(s string) string {
	if c, ok := canonicalBySynonym[fold(s)]; ok {
		return c
	}
	f := fold(s)
	for _, group := range vocabulary {
		for _, syn := range group {
			if strings.Contains(f, fold(syn)) {
				return group[0]
			}
		}
	}
	return strings.TrimSpace(s)
}

// Detect finds the first cuisine mentioned in free text.
func Detect(text string) (string, bool) {
	f := fold(text)
	best, bestPos := "", -1
	for _, group := range vocabulary {
		for _, syn := range group {
			pos := strings.Index(f, fold(syn))
			if pos >= 0 && (bestPos < 0 || pos < bestPos) {
				best, bestPos = group[0], pos
			}
		}
	}
	return best, bestPos >= 0
}

// Match reports whether a restaurant's cuisine satisfies the wanted cuisine:
// case-insensitive substring either way, or the same canonical form.
func Match(restaurantCuisine, wanted string) bool {
	have, want := fold(restaurantCuisine), fold(wanted)
	if want == "" {
		return true
	}
	if have == "" {
		return false
	}
	if strings.Contains(have, want) || strings.Contains(want, have) {
		return true
	}
	return Canonical(restaurantCuisine) == Canonical(wanted)
}

// Names returns the canonical cuisine names.
func Names() []string {
	out := make([]string, len(vocabulary))
	for i, group := range vocabulary {
		out[i] = group[0]
	}
	return out
}
