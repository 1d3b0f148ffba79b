package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	domusage "github.com/kailas-cloud/tablefinder/internal/domain/usage"
	"github.com/kailas-cloud/tablefinder/internal/logger"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
	chatuc "github.com/kailas-cloud/tablefinder/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/tablefinder/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/tablefinder/internal/usecase/session"
	usageuc "github.com/kailas-cloud/tablefinder/internal/usecase/usage"
)

const maxRequestBytes = 64 << 10

// Error codes carried by ErrorResponse and search envelopes.
const (
	CodeBadRequest        = "bad_request"
	CodeValidationFailed  = "validation_failed"
	CodeInsufficientInput = "insufficient_input"
	CodeNotFound          = "not_found"
	CodeStaleVersion      = "stale_version"
	CodeRateLimited       = "rate_limited"
	CodeInternalError     = "internal_error"
)

// ErrorResponse is the error body of the non-search endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RestaurantReader looks up dataset entries.
type RestaurantReader interface {
	Get(ctx context.Context, id string) (restaurant.Restaurant, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API.
type Server struct {
	chat          *chatuc.Service
	restaurants   RestaurantReader
	sessions      *sessionuc.Service
	health        *healthuc.Service
	usage         *usageuc.Service
	limiter       *ClientRateLimiter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. limiter may be nil (no rate limit).
func NewServer(
	chat *chatuc.Service,
	restaurants RestaurantReader,
	sessions *sessionuc.Service,
	health *healthuc.Service,
	usage *usageuc.Service,
	limiter *ClientRateLimiter,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:        chat,
		restaurants: restaurants,
		sessions:    sessions,
		health:      health,
		usage:       usage,
		limiter:     limiter,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidLocation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidCoordinate, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidPeriod, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrStaleVersion, http.StatusConflict, CodeStaleVersion),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	}
	return s
}

// Routes builds the router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimit(s.limiter)).Post("/search", s.Search)
		r.Get("/restaurants/{id}", s.GetRestaurant)
		r.Get("/sessions", s.SessionStats)
		r.Get("/sessions/{user_id}", s.GetSession)
		r.Get("/sessions/{user_id}/history", s.GetSessionHistory)
		r.Delete("/sessions/{user_id}", s.DeleteSession)
		r.Get("/usage", s.GetUsage)
	})
	return r
}

// searchRequest is the POST /api/v1/search body. Location stays raw so that
// strings, objects and malformed values can be told apart.
type searchRequest struct {
	UserID    string          `json:"user_id"`
	UserInput string          `json:"user_input"`
	Location  json.RawMessage `json:"location"`
	Time      *string         `json:"time"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "user_id is required")
		return
	}

	req := chatuc.Request{
		UserID:    body.UserID,
		UserInput: body.UserInput,
		Location:  location.ParseInput(body.Location),
	}
	if body.Time != nil && strings.TrimSpace(*body.Time) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*body.Time))
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "time must be an RFC 3339 timestamp")
			return
		}
		req.Time = &t
	}

	resp, err := s.chat.Handle(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, r, resp, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, resp chatuc.Response, err error) {
	log := logger.FromContext(r.Context())

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidLocation), errors.Is(err, domain.ErrInvalidCoordinate):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStaleVersion):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		log.Info("Client went away", zap.Error(err))
	default:
		log.Error("Search failed", zap.Error(err))
	}

	if resp.Type == "" {
		writeEnvelope(w, status, CodeInternalError, "internal error")
		return
	}
	writeJSON(w, status, resp)
}

// GetRestaurant handles GET /api/v1/restaurants/{id}.
func (s *Server) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := s.restaurants.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restaurantResponse{
		Result:      restaurant.NewResult(rest, nil),
		Description: rest.Description,
	})
}

type restaurantResponse struct {
	restaurant.Result
	Description string `json:"description,omitempty"`
}

// SessionStats handles GET /api/v1/sessions.
func (s *Server) SessionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Stats(r.Context()))
}

// GetSession handles GET /api/v1/sessions/{user_id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Status(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetSessionHistory handles GET /api/v1/sessions/{user_id}/history.
func (s *Server) GetSessionHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	turns, err := s.sessions.History(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"turns":   turns,
	})
}

// DeleteSession handles DELETE /api/v1/sessions/{user_id}. Unknown users are not an error.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	deleted := s.sessions.Delete(r.Context(), chi.URLParam(r, "user_id"))
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type usageResponse struct {
	Provider      string       `json:"provider"`
	Period        string       `json:"period"`
	PeriodStartAt time.Time    `json:"period_start_at"`
	PeriodEndAt   time.Time    `json:"period_end_at"`
	Usage         usageTokens  `json:"usage"`
	Budget        budgetStatus `json:"budget"`
}

type usageTokens struct {
	Tokens int64 `json:"tokens"`
}

type budgetStatus struct {
	TokensLimit     *int64     `json:"tokens_limit"`
	TokensRemaining *int64     `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// GetUsage handles GET /api/v1/usage. Unlimited budgets report null limits.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := usageResponse{
		Provider:      report.Provider(),
		Period:        string(report.Period()),
		PeriodStartAt: report.PeriodStart(),
		PeriodEndAt:   report.PeriodEnd(),
		Usage:         usageTokens{Tokens: report.TokensUsed()},
		Budget:        budgetStatus{IsExhausted: report.IsExhausted()},
	}
	if !report.Unlimited() {
		limit, remaining, resetsAt := report.TokensLimit(), report.TokensRemaining(), report.PeriodEnd()
		resp.Budget.TokensLimit = &limit
		resp.Budget.TokensRemaining = &remaining
		resp.Budget.ResetsAt = &resetsAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health. Degraded still serves traffic.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// writeEnvelope writes a search-shaped error reply.
func writeEnvelope(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, chatuc.Response{
		Type:            chatuc.TypeError,
		Reason:          reason,
		Message:         message,
		Recommendations: []restaurant.Result{},
		Metadata:        chatuc.Metadata{SearchTime: time.Now().UTC()},
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidLocation,
		domain.ErrInvalidCoordinate,
		domain.ErrInvalidPeriod,
		domain.ErrStaleVersion,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
