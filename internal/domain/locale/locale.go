// Package locale detects the language of user input and normalizes locale tags.
package locale

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Supported reply locales.
var (
	TraditionalChinese = language.MustParse("zh-TW")
	SimplifiedChinese  = language.MustParse("zh-CN")
	English            = language.English
	Japanese           = language.Japanese
	Korean             = language.Korean
)

var supported = []language.Tag{TraditionalChinese, SimplifiedChinese, English, Japanese, Korean}

var matcher = language.NewMatcher(supported)

// Parse maps any BCP 47 string onto the closest supported locale.
// Unparseable input yields fallback.
func Parse(s string, fallback language.Tag) language.Tag {
	t, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// Key returns the canonical string form used as a lookup key (zh-TW, zh-CN, en, ja, ko).
func Key(t language.Tag) string {
	return Parse(t.String(), English).String()
}

// Characters that exist in only one of the two Chinese scripts.
const (
	simplifiedMarkers  = "这们说请价点么为东门问时对从买车气间经边还没吗"
	traditionalMarkers = "這們說請價點麼為東門問時對從買車氣間經邊還沒嗎"
)

// Detect guesses the language of text from its scripts. Empty or
// script-less text yields fallback.
func Detect(text string, fallback language.Tag) language.Tag {
	var han, kana, hangul, simp, trad, latinWords int
	inWord := false
	for _, r := range text {
		isLatin := r < unicode.MaxASCII && unicode.IsLetter(r)
		if isLatin && !inWord {
			latinWords++
		}
		inWord = isLatin

		switch {
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Han, r):
			han++
			if strings.ContainsRune(simplifiedMarkers, r) {
				simp++
			} else if strings.ContainsRune(traditionalMarkers, r) {
				trad++
			}
		}
	}

	switch {
	case kana > 0:
		return Japanese
	case hangul > 0 && hangul >= han:
		return Korean
	case han > 0 && han >= latinWords:
		if simp > trad {
			return SimplifiedChinese
		}
		return TraditionalChinese
	case latinWords > 0:
		return English
	default:
		return fallback
	}
}
