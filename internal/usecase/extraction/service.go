// Package extraction turns a user utterance plus conversation context into
// either final search criteria or a clarifying question.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/locale"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/domain/session"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// DefaultTimeout bounds a single model call when none is configured.
const DefaultTimeout = 8 * time.Second

// Outcome is either FinalCriteria or FollowUp.
type Outcome interface {
	isOutcome()
}

// FinalCriteria carries the merged criteria to search with and the fields
// this turn extracted on its own.
type FinalCriteria struct {
	Criteria  criteria.Criteria
	Extracted criteria.Criteria
}

// FollowUp carries a clarifying question for the user.
type FollowUp struct {
	Question string
}

func (FinalCriteria) isOutcome() {}
func (FollowUp) isOutcome()      {}

// Input is everything the model sees for one turn.
type Input struct {
	Utterance string
	History   []session.Turn
	Location  location.Descriptor
	Prior     criteria.Criteria
}

// Result is the extraction outcome. Nothing here is persisted; the caller
// records the turn once its reply is final.
type Result struct {
	Outcome  Outcome
	Language language.Tag
	Raw      string
	Usage    domain.Completion
}

// Config tunes the extraction service.
type Config struct {
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	DefaultLocale language.Tag
	Rules         Rules
}

// Service calls the LLM and interprets its answer.
type Service struct {
	llm      Completer
	cfg      Config
	followUp *FollowUpDetector
	logger   *zap.Logger
}

// New creates an extraction service. A nil llm makes every call fail with
// ErrAIServiceUnavailable so callers take the keyword path.
func New(llm Completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DefaultLocale == (language.Tag{}) {
		cfg.DefaultLocale = locale.TraditionalChinese
	}
	if cfg.Rules.QuestionMarks == nil && cfg.Rules.QuestionIndicators == nil {
		cfg.Rules = DefaultRules()
	}
	return &Service{
		llm:      llm,
		cfg:      cfg,
		followUp: NewFollowUpDetector(cfg.Rules),
		logger:   logger,
	}
}

// DetectLanguage returns the reply locale for an utterance.
func (s *Service) DetectLanguage(utterance string) language.Tag {
	return locale.Detect(utterance, s.cfg.DefaultLocale)
}

// Extract asks the model for criteria. Timeouts and transport failures return
// ErrAIServiceUnavailable, unusable answers ErrAIServiceError. Cancellation of
// ctx by the caller is returned as the context error.
func (s *Service) Extract(ctx context.Context, in Input) (Result, error) {
	lang := s.DetectLanguage(in.Utterance)

	if s.llm == nil {
		metrics.ExtractionOutcomesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: no model configured", domain.ErrAIServiceUnavailable)
	}

	system, err := buildSystemPrompt(in.Location, in.Prior, locale.Key(lang))
	if err != nil {
		return Result{}, err
	}

	msgs := make([]domain.Message, 0, len(in.History)+1)
	for _, t := range in.History {
		msgs = append(msgs, domain.Message{Role: t.Role, Text: t.Text})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Text: in.Utterance})

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	comp, err := s.llm.Complete(callCtx, domain.CompletionRequest{
		System:      system,
		Messages:    msgs,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		metrics.ExtractionOutcomesTotal.WithLabelValues("error").Inc()
		return Result{}, s.classify(ctx, callCtx, err)
	}

	outcome, err := s.interpret(comp.Text, lang, in.Prior)
	if err != nil {
		metrics.ExtractionOutcomesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Unusable model output", zap.String("output", truncate(comp.Text, 200)), zap.Error(err))
		return Result{}, err
	}

	label := "final"
	if _, ok := outcome.(FollowUp); ok {
		label = "followup"
	}
	metrics.ExtractionOutcomesTotal.WithLabelValues(label).Inc()

	return Result{
		Outcome:  outcome,
		Language: lang,
		Raw:      strings.TrimSpace(comp.Text),
		Usage:    comp,
	}, nil
}

func (s *Service) classify(parent, call context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("extract: %w", parent.Err())
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out after %s", domain.ErrAIServiceUnavailable, s.cfg.Timeout)
	case domain.IsAIFailure(err):
		return fmt.Errorf("extract: %w", err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrAIServiceUnavailable, err)
	}
}

// interpret maps model text onto an Outcome.
func (s *Service) interpret(text string, lang language.Tag, prior criteria.Criteria) (Outcome, error) {
	raw, ok := findJSON(text)
	if !ok {
		if s.followUp.IsFollowUp(text, lang) {
			return FollowUp{Question: strings.TrimSpace(text)}, nil
		}
		return nil, fmt.Errorf("%w: no JSON object in model output", domain.ErrAIServiceError)
	}

	extracted, question, err := parseOutput(raw)
	if err != nil {
		return nil, err
	}
	merged := prior.Merge(extracted)

	switch {
	case !extracted.IsActionable() && question != "":
		return FollowUp{Question: question}, nil
	case merged.IsActionable():
		return FinalCriteria{Criteria: merged, Extracted: extracted}, nil
	case question != "":
		return FollowUp{Question: question}, nil
	default:
		return FollowUp{Question: DefaultQuestion(lang)}, nil
	}
}

var defaultQuestions = map[string]string{
	"zh-TW": "請問您想吃哪一種料理？也可以告訴我預算或想要的評分。",
	"zh-CN": "请问您想吃哪一种料理？也可以告诉我预算或想要的评分。",
	"en":    "What kind of food are you in the mood for? You can also tell me your budget or a minimum rating.",
	"ja":    "どんな料理が食べたいですか？予算や評価の希望も教えてください。",
	"ko":    "어떤 음식을 원하시나요? 예산이나 원하는 평점도 알려주세요.",
}

// DefaultQuestion is the clarifying question used when the model offers none.
func DefaultQuestion(lang language.Tag) string {
	if q, ok := defaultQuestions[locale.Key(lang)]; ok {
		return q
	}
	return defaultQuestions["en"]
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
