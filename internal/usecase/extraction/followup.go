package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/kailas-cloud/tablefinder/internal/domain/locale"
)

// Rules are the heuristics that recognize a clarifying question in free-form
// model output. Per-locale maps are keyed by locale.Key.
type Rules struct {
	QuestionMarks         []string
	QuestionIndicators    map[string][]string
	MissingInfoIndicators map[string][]string
	Patterns              map[string][]*regexp.Regexp
}

// DefaultRules returns the built-in heuristics for zh-TW, zh-CN, en, ja and ko.
func DefaultRules() Rules {
	return Rules{
		QuestionMarks: []string{"？", "?", "¿", "؟"},
		QuestionIndicators: map[string][]string{
			"zh-TW": {
				"您希望", "您想要", "您需要", "您偏好", "請問", "想知道", "可以告訴我",
				"您可以", "您願意", "建議您", "您覺得", "您認為", "有沒有", "是否", "要不要",
				"哪一種", "哪種", "什麼樣",
			},
			"zh-CN": {
				"您希望", "您想要", "您需要", "您偏好", "请问", "想知道", "可以告诉我",
				"您可以", "您愿意", "建议您", "您觉得", "您认为", "有没有", "是否", "要不要",
				"哪一种", "哪种", "什么样",
			},
			"en": {
				"would you like", "do you want", "do you need", "do you prefer", "can you tell me",
				"please let me know", "would you prefer", "are you looking for", "what kind of",
				"which type", "how about", "could you", "would you mind", "what about",
				"have you considered", "would you be interested", "are you interested in",
			},
			"ja": {"ですか", "ますか", "でしょうか", "教えてください", "どの", "どんな"},
			"ko": {"까요", "나요", "알려주세요", "어떤", "어느"},
		},
		MissingInfoIndicators: map[string][]string{
			"zh-TW": {"缺少", "需要更多", "請提供", "沒有提到", "不清楚", "需要確認", "請指定", "請說明", "需要知道", "請補充", "資訊不足"},
			"zh-CN": {"缺少", "需要更多", "请提供", "没有提到", "不清楚", "需要确认", "请指定", "请说明", "需要知道", "请补充", "信息不足"},
			"en": {
				"missing", "need more", "please provide", "not mentioned", "unclear", "need to confirm",
				"please specify", "incomplete", "additional information", "more details", "clarification needed",
			},
		},
		Patterns: map[string][]*regexp.Regexp{
			"en": {
				regexp.MustCompile(`(?i)\b(what|where|when|why|how|which|who)\b.*[?？]`),
				regexp.MustCompile(`(?i)\b(do|does|did|can|could|would|will|should|may|might)\s+you\b`),
				regexp.MustCompile(`(?i)\b(tell|let)\s+me\b`),
			},
		},
	}
}

// Overrides extends Rules from configuration.
type Overrides struct {
	QuestionMarks         []string
	QuestionIndicators    map[string][]string
	MissingInfoIndicators map[string][]string
	Patterns              map[string][]string
}

// Extend returns a copy of r with the overrides appended. Locale keys are
// normalized through locale.Parse.
func (r Rules) Extend(o Overrides) (Rules, error) {
	out := Rules{
		QuestionMarks:         append(append([]string{}, r.QuestionMarks...), o.QuestionMarks...),
		QuestionIndicators:    mergeLists(r.QuestionIndicators, o.QuestionIndicators),
		MissingInfoIndicators: mergeLists(r.MissingInfoIndicators, o.MissingInfoIndicators),
		Patterns:              make(map[string][]*regexp.Regexp, len(r.Patterns)),
	}
	for k, v := range r.Patterns {
		out.Patterns[k] = append([]*regexp.Regexp{}, v...)
	}
	for k, exprs := range o.Patterns {
		key := locale.Key(locale.Parse(k, locale.English))
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return Rules{}, fmt.Errorf("follow-up pattern %q for %s: %w", expr, k, err)
			}
			out.Patterns[key] = append(out.Patterns[key], re)
		}
	}
	return out, nil
}

func mergeLists(base, extra map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base))
	for k, v := range base {
		out[k] = append([]string{}, v...)
	}
	for k, v := range extra {
		key := locale.Key(locale.Parse(k, locale.English))
		out[key] = append(out[key], v...)
	}
	return out
}

// FollowUpDetector decides whether free-form model output asks the user something.
type FollowUpDetector struct {
	rules Rules
}

// NewFollowUpDetector creates a detector.
func NewFollowUpDetector(rules Rules) *FollowUpDetector {
	return &FollowUpDetector{rules: rules}
}

// IsFollowUp applies the question-mark rule, then the indicators and
// patterns of lang. Locales without rules of their own are checked against
// every locale's lists.
func (d *FollowUpDetector) IsFollowUp(text string, lang language.Tag) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, m := range d.rules.QuestionMarks {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}

	lower := strings.ToLower(text)
	key := locale.Key(lang)
	return containsAny(lower, d.lists(d.rules.QuestionIndicators, key)) ||
		containsAny(lower, d.lists(d.rules.MissingInfoIndicators, key)) ||
		matchesAny(text, d.patterns(key))
}

func (d *FollowUpDetector) lists(m map[string][]string, key string) []string {
	if v, ok := m[key]; ok {
		return v
	}
	var all []string
	for _, v := range m {
		all = append(all, v...)
	}
	return all
}

func (d *FollowUpDetector) patterns(key string) []*regexp.Regexp {
	if v, ok := d.rules.Patterns[key]; ok {
		return v
	}
	var all []*regexp.Regexp
	for _, v := range d.rules.Patterns {
		all = append(all, v...)
	}
	return all
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func matchesAny(text string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
