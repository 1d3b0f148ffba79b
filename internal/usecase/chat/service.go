// Package chat orchestrates one conversational search request: location
// normalization, extraction, search, and a single session commit.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/locale"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	"github.com/kailas-cloud/tablefinder/internal/domain/session"
	"github.com/kailas-cloud/tablefinder/internal/logger"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
	"github.com/kailas-cloud/tablefinder/internal/usecase/extraction"
	"github.com/kailas-cloud/tablefinder/internal/usecase/search"
)

// DefaultCommitRetries bounds re-application after a lost version race.
const DefaultCommitRetries = 3

// ResponseType classifies a reply.
type ResponseType string

// Reply types.
const (
	TypeSuccess  ResponseType = "success"
	TypeFollowUp ResponseType = "followup"
	TypeError    ResponseType = "error"
)

// Error reasons carried by TypeError replies.
const (
	ReasonInsufficientInput = "insufficient_input"
	ReasonInvalidLocation   = "invalid_location"
	ReasonStaleVersion      = "stale_version"
	ReasonInternal          = "internal"
)

// Request is one user turn.
type Request struct {
	UserID    string
	UserInput string
	Location  location.Input
	Time      *time.Time
}

// CriteriaView is the criteria echoed back to the client, location included.
type CriteriaView struct {
	criteria.Criteria
	Location location.Descriptor `json:"location"`
}

// Metadata describes how a reply was produced.
type Metadata struct {
	SearchTime     time.Time `json:"search_time"`
	TotalFound     int       `json:"total_found"`
	Language       string    `json:"language"`
	Degraded       bool      `json:"degraded"`
	SessionVersion int64     `json:"session_version"`
}

// Response is the reply envelope.
type Response struct {
	Type            ResponseType        `json:"type"`
	Reason          string              `json:"reason,omitempty"`
	Message         string              `json:"message"`
	Recommendations []restaurant.Result `json:"recommendations"`
	Criteria        CriteriaView        `json:"criteria"`
	Metadata        Metadata            `json:"metadata"`
}

// Config tunes the orchestrator.
type Config struct {
	CommitRetries int
}

// Service is the request orchestrator. It is the only writer of session state.
type Service struct {
	sessions   SessionStore
	normalizer *location.Normalizer
	geocoder   Geocoder
	extractor  Extractor
	fallback   KeywordExtractor
	searcher   Searcher
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger
}

// New creates the orchestrator. geocoder may be nil.
func New(
	sessions SessionStore,
	normalizer *location.Normalizer,
	geocoder Geocoder,
	extractor Extractor,
	fallback KeywordExtractor,
	searcher Searcher,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = DefaultCommitRetries
	}
	return &Service{
		sessions:   sessions,
		normalizer: normalizer,
		geocoder:   geocoder,
		extractor:  extractor,
		fallback:   fallback,
		searcher:   searcher,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// delta is everything a turn changes in the session. It is applied to a
// fresh snapshot on every commit attempt; update holds only the fields this
// turn set, so fields committed by a concurrent writer survive a retry.
type delta struct {
	turns    []session.Turn
	update   criteria.Criteria
	location location.Descriptor
}

func (d delta) apply(st *session.State) *session.State {
	next := st.Clone()
	next.History.Append(d.turns...)
	next.Criteria = st.Criteria.Merge(d.update)
	next.Location = d.location
	return next
}

// Handle runs one request. On failure the returned Response is a localized
// TypeError envelope alongside the error; no session change is committed.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	ctx = logger.With(logger.ContextWithLogger(ctx, s.loggerFrom(ctx)), zap.String("user_id", req.UserID))
	log := logger.FromContext(ctx)

	utterance := strings.TrimSpace(req.UserInput)
	lang := s.extractor.DetectLanguage(utterance)

	snapshot := s.sessions.GetOrCreate(ctx, req.UserID)

	loc, err := s.resolveLocation(ctx, req.Location, snapshot)
	if err != nil {
		return s.failure(lang, err), err
	}

	var update criteria.Criteria
	if req.Time != nil {
		update = update.WithTime(*req.Time)
	}
	prior := snapshot.Criteria.Merge(update)

	var (
		d        = delta{update: update, location: loc}
		final    criteria.Criteria
		degraded bool
		reply    Response
	)

	switch {
	case utterance == "" && !loc.IsResolved():
		return s.failure(lang, domain.ErrInsufficientInput), domain.ErrInsufficientInput

	case utterance == "":
		// Location-only turn: reuse prior criteria, nothing to ask the model.
		final = prior

	default:
		res, err := s.extractor.Extract(ctx, extraction.Input{
			Utterance: utterance,
			History:   snapshot.History.Turns(),
			Location:  loc,
			Prior:     prior,
		})
		switch {
		case ctx.Err() != nil:
			return Response{}, fmt.Errorf("handle: %w", ctx.Err())

		case domain.IsAIFailure(err):
			log.Warn("AI extraction failed, using keyword fallback", zap.Error(err))
			metrics.FallbackTotal.WithLabelValues(fallbackReason(err)).Inc()
			extracted := s.fallback.Extract(utterance)
			final = prior.Merge(extracted)
			d.update = d.update.Merge(extracted)
			if !final.IsActionable() && !loc.IsResolved() {
				return s.failure(lang, domain.ErrInsufficientInput), domain.ErrInsufficientInput
			}
			degraded = true

		case err != nil:
			return s.failure(lang, err), fmt.Errorf("extract: %w", err)

		default:
			lang = res.Language
			log.Debug("Model reply", zap.String("raw", res.Raw), zap.Int("prompt_tokens", res.Usage.PromptTokens))
			switch out := res.Outcome.(type) {
			case extraction.FollowUp:
				reply = Response{
					Type:            TypeFollowUp,
					Message:         out.Question,
					Recommendations: []restaurant.Result{},
				}
			case extraction.FinalCriteria:
				final = out.Criteria
				d.update = d.update.Merge(out.Extracted)
			}
		}
	}

	if reply.Type == "" {
		results, total, err := s.searcher.Search(ctx, search.Query{Criteria: final, Location: loc})
		if err != nil {
			log.Error("Search failed", zap.Error(err))
			return s.failure(lang, err), fmt.Errorf("search: %w", err)
		}
		reply = Response{
			Type:            TypeSuccess,
			Recommendations: results,
		}
		reply.Metadata.TotalFound = total
		if len(results) > 0 {
			reply.Message = message(lang, msgFound, len(results))
		} else {
			reply.Message = message(lang, msgNoMatches)
		}
	}

	// The stored assistant turn is exactly the message the user receives.
	if utterance != "" {
		now := s.now()
		d.turns = []session.Turn{
			{Role: domain.RoleUser, Text: utterance, At: now},
			{Role: domain.RoleAssistant, Text: reply.Message, At: now},
		}
	}

	committed, err := s.commit(ctx, req.UserID, snapshot, d)
	if err != nil {
		if errors.Is(err, domain.ErrStaleVersion) {
			return s.failure(lang, err), err
		}
		return Response{}, err
	}

	reply.Criteria = CriteriaView{Criteria: committed.Criteria, Location: committed.Location}
	reply.Metadata.SearchTime = s.now().UTC()
	reply.Metadata.Language = locale.Key(lang)
	reply.Metadata.Degraded = degraded
	reply.Metadata.SessionVersion = committed.Version

	log.Info("Request handled",
		zap.String("type", string(reply.Type)),
		zap.Int("results", len(reply.Recommendations)),
		zap.Bool("degraded", degraded),
		zap.Int64("session_version", committed.Version),
	)
	return reply, nil
}

// resolveLocation normalizes the request location, falls back to the
// session's last resolved one, and geocodes addresses.
func (s *Service) resolveLocation(ctx context.Context, in location.Input, snapshot *session.State) (location.Descriptor, error) {
	loc, err := s.normalizer.Normalize(in)
	if err != nil {
		return location.Descriptor{}, err
	}
	if !loc.IsResolved() && snapshot.Location.IsResolved() {
		loc = snapshot.Location
	}

	if loc.Kind() != location.KindAddress || s.geocoder == nil {
		return loc, nil
	}
	if _, ok := loc.Center(); ok {
		return loc, nil
	}
	p, err := s.geocoder.Geocode(ctx, loc.Address())
	if err != nil {
		s.loggerFrom(ctx).Warn("Geocoding failed, searching without distance filter",
			zap.String("address", loc.Address()),
			zap.Error(err),
		)
		return loc, nil
	}
	return loc.WithCenter(p), nil
}

// commit writes d once. After a lost version race the same delta is
// re-applied to the newly committed state, up to cfg.CommitRetries times.
func (s *Service) commit(ctx context.Context, userID string, snapshot *session.State, d delta) (*session.State, error) {
	base := snapshot
	var lastErr error
	for attempt := 0; attempt <= s.cfg.CommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		if attempt > 0 {
			base = s.sessions.GetOrCreate(ctx, userID)
		}

		committed, err := s.sessions.Commit(ctx, userID, d.apply(base), base.Version)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, domain.ErrStaleVersion) {
			return nil, fmt.Errorf("commit session: %w", err)
		}
		metrics.SessionCommitConflictsTotal.Inc()
		s.loggerFrom(ctx).Debug("Session version conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, fmt.Errorf("commit session after %d retries: %w", s.cfg.CommitRetries, lastErr)
}

func (s *Service) failure(lang language.Tag, err error) Response {
	resp := Response{
		Type:            TypeError,
		Recommendations: []restaurant.Result{},
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientInput):
		resp.Reason, resp.Message = ReasonInsufficientInput, message(lang, msgInsufficientInput)
	case errors.Is(err, domain.ErrInvalidLocation), errors.Is(err, domain.ErrInvalidCoordinate):
		resp.Reason, resp.Message = ReasonInvalidLocation, message(lang, msgInvalidLocation)
	case errors.Is(err, domain.ErrStaleVersion):
		resp.Reason, resp.Message = ReasonStaleVersion, message(lang, msgBusy)
	default:
		resp.Reason, resp.Message = ReasonInternal, message(lang, msgFailure)
	}
	resp.Metadata.SearchTime = s.now().UTC()
	resp.Metadata.Language = locale.Key(lang)
	return resp
}

func (s *Service) loggerFrom(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l.Core().Enabled(zap.FatalLevel) {
		return l
	}
	return s.logger
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenBudgetExceeded):
		return "budget"
	case errors.Is(err, domain.ErrAIServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
