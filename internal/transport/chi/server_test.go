package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
	"github.com/kailas-cloud/tablefinder/internal/repository/place"
	restaurantrepo "github.com/kailas-cloud/tablefinder/internal/repository/restaurant"
	sessionrepo "github.com/kailas-cloud/tablefinder/internal/repository/session"
	chatuc "github.com/kailas-cloud/tablefinder/internal/usecase/chat"
	completionuc "github.com/kailas-cloud/tablefinder/internal/usecase/completion"
	"github.com/kailas-cloud/tablefinder/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/tablefinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/tablefinder/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/tablefinder/internal/usecase/session"
	usageuc "github.com/kailas-cloud/tablefinder/internal/usecase/usage"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// --- Fixtures ---

type fixedCompleter struct {
	text string
}

func (f *fixedCompleter) Complete(_ context.Context, _ domain.CompletionRequest) (domain.Completion, error) {
	return domain.Completion{Text: f.text, PromptTokens: 10, CompletionTokens: 5}, nil
}

var testRestaurants = []restaurant.Restaurant{
	{
		ID: "r001", Name: "鮨処 一", Cuisine: "日式",
		Location: geo.Point{Lat: 25.04379, Lon: 121.5654},
		Rating:   4.5, PriceLevel: 3, Tags: []string{"壽司"},
		Description: "板前壽司",
	},
	{
		ID: "r002", Name: "義式風情", Cuisine: "義大利菜",
		Location: geo.Point{Lat: 25.0405, Lon: 121.5487},
		Rating:   4.6, PriceLevel: 3,
	},
}

func newTestServer(t *testing.T, limiter *ClientRateLimiter) http.Handler {
	t.Helper()
	gaz, err := place.NewGazetteer([]place.Place{
		{Name: "台北市信義區", Location: geo.Point{Lat: 25.0330, Lon: 121.5654}},
	})
	if err != nil {
		t.Fatalf("gazetteer: %v", err)
	}

	repo := restaurantrepo.New(testRestaurants)
	store := sessionrepo.New(10)
	llm := &fixedCompleter{text: `{"cuisine":"日式","keyword":null,"price_level":null,"min_rating":null,"follow_up":null}`}

	chat := chatuc.New(
		store,
		location.NewNormalizer(location.DefaultRadiusKm),
		gaz,
		extraction.New(llm, extraction.Config{Timeout: time.Second}, zap.NewNop()),
		extraction.NewFallback(),
		searchuc.New(repo, searchuc.DefaultTopK),
		chatuc.Config{},
		zap.NewNop(),
	)
	sessions := sessionuc.New(store, time.Hour, zap.NewNop())
	health := healthuc.New(repo, nil, nil, zap.NewNop())
	budget := completionuc.NewBudgetTracker("openai", 1000, 0, completionuc.BudgetActionReject, zap.NewNop())
	budget.Record(250)

	return NewServer(chat, repo, sessions, health, usageuc.New(budget, ""), limiter, zap.NewNop()).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// --- Search ---

func TestSearch_Success(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/search", map[string]any{
		"user_id":    "u1",
		"user_input": "附近有什麼好吃的日式料理？",
		"location":   map[string]any{"latitude": 25.0330, "longitude": 121.5654},
		"time":       "2026-10-16T19:30:00+08:00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["type"] != "success" {
		t.Errorf("type: got %v", body["type"])
	}
	recs, _ := body["recommendations"].([]any)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	first, _ := recs[0].(map[string]any)
	if first["id"] != "r001" || first["distance_km"] != 1.2 {
		t.Errorf("recommendation: got %v", first)
	}
	criteria, _ := body["criteria"].(map[string]any)
	if criteria["cuisine"] != "日式" {
		t.Errorf("criteria cuisine: got %v", criteria["cuisine"])
	}
	if _, ok := criteria["time"]; !ok {
		t.Error("criteria should echo time")
	}
	loc, _ := criteria["location"].(map[string]any)
	if loc["type"] != "coordinates" || loc["search_radius_km"] != 5.0 {
		t.Errorf("criteria location: got %v", loc)
	}
	meta, _ := body["metadata"].(map[string]any)
	if meta["total_found"] != 1.0 || meta["session_version"] != 1.0 {
		t.Errorf("metadata: got %v", meta)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		reason string
	}{
		{"malformed json", "{not json", http.StatusBadRequest, CodeBadRequest},
		{"missing user_id", map[string]any{"user_input": "日式"}, http.StatusBadRequest, CodeBadRequest},
		{"bad time", map[string]any{"user_id": "u1", "user_input": "日式", "time": "tonight"}, http.StatusBadRequest, CodeBadRequest},
		{
			"invalid location object",
			map[string]any{"user_id": "u1", "user_input": "日式", "location": map[string]any{"latitude": 91, "longitude": 121}},
			http.StatusBadRequest, chatuc.ReasonInvalidLocation,
		},
		{
			"non-numeric location object",
			map[string]any{"user_id": "u1", "user_input": "日式", "location": map[string]any{"latitude": "25", "longitude": "121"}},
			http.StatusBadRequest, chatuc.ReasonInvalidLocation,
		},
		{"insufficient input", map[string]any{"user_id": "u1", "user_input": ""}, http.StatusUnprocessableEntity, chatuc.ReasonInsufficientInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, nil)
			rec := do(t, h, http.MethodPost, "/api/v1/search", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			body := decode(t, rec)
			if body["type"] != "error" {
				t.Errorf("type: got %v", body["type"])
			}
			if body["reason"] != tt.reason {
				t.Errorf("reason: got %v, want %s", body["reason"], tt.reason)
			}
			if recs, ok := body["recommendations"].([]any); !ok || len(recs) != 0 {
				t.Errorf("recommendations should be an empty list, got %v", body["recommendations"])
			}
		})
	}
}

func TestSearch_RateLimited(t *testing.T) {
	h := newTestServer(t, NewClientRateLimiter(1, time.Minute, 1))
	body := map[string]any{"user_id": "u1", "user_input": "日式"}

	if rec := do(t, h, http.MethodPost, "/api/v1/search", body); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/search", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if decode(t, rec)["reason"] != CodeRateLimited {
		t.Errorf("reason: got %v", decode(t, rec)["reason"])
	}

	// Other routes are not limited.
	if rec := do(t, h, http.MethodGet, "/api/v1/restaurants/r001", nil); rec.Code != http.StatusOK {
		t.Errorf("restaurant lookup: expected 200, got %d", rec.Code)
	}
}

// --- Restaurants ---

func TestGetRestaurant(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/restaurants/r001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["name"] != "鮨処 一" || body["description"] != "板前壽司" {
		t.Errorf("body: got %v", body)
	}
	if _, ok := body["distance_km"]; ok {
		t.Error("distance_km should be absent without a reference point")
	}

	rec = do(t, h, http.MethodGet, "/api/v1/restaurants/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if decode(t, rec)["code"] != CodeNotFound {
		t.Errorf("code: got %v", decode(t, rec)["code"])
	}
}

// --- Sessions ---

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	if rec := do(t, h, http.MethodGet, "/api/v1/sessions/u1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", rec.Code)
	}

	do(t, h, http.MethodPost, "/api/v1/search", map[string]any{
		"user_id": "u1", "user_input": "日式", "location": "25.0330,121.5654",
	})

	rec := do(t, h, http.MethodGet, "/api/v1/sessions/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	st := decode(t, rec)
	if st["version"] != 1.0 || st["turns"] != 2.0 {
		t.Errorf("status: got %v", st)
	}
	if st["session_id"] == "" {
		t.Error("session_id should be set")
	}

	rec = do(t, h, http.MethodGet, "/api/v1/sessions/u1/history", nil)
	turns, _ := decode(t, rec)["turns"].([]any)
	if len(turns) != 2 {
		t.Errorf("history: expected 2 turns, got %d", len(turns))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/sessions", nil)
	if decode(t, rec)["sessions"] != 1.0 {
		t.Errorf("stats: got %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodDelete, "/api/v1/sessions/u1", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["deleted"] != true {
		t.Errorf("first delete: got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodDelete, "/api/v1/sessions/u1", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["deleted"] != false {
		t.Errorf("second delete: got %d %s", rec.Code, rec.Body.String())
	}
}

// --- Usage ---

func TestGetUsage(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/usage?period=day", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["provider"] != "openai" || body["period"] != "day" {
		t.Errorf("unexpected header fields: %v", body)
	}
	usage, _ := body["usage"].(map[string]any)
	if usage["tokens"] != float64(250) {
		t.Errorf("tokens: got %v", usage["tokens"])
	}
	budget, _ := body["budget"].(map[string]any)
	if budget["tokens_limit"] != float64(1000) || budget["tokens_remaining"] != float64(750) {
		t.Errorf("budget: got %v", budget)
	}
	if budget["is_exhausted"] != false || budget["resets_at"] == nil {
		t.Errorf("budget state: got %v", budget)
	}
}

func TestGetUsage_MonthlyUnlimited(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/usage?period=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	budget, _ := decode(t, rec)["budget"].(map[string]any)
	if budget["tokens_limit"] != nil || budget["tokens_remaining"] != nil {
		t.Errorf("unlimited monthly budget should report null limits, got %v", budget)
	}
	if _, ok := budget["resets_at"]; ok {
		t.Errorf("unlimited budget should omit resets_at, got %v", budget)
	}
}

func TestGetUsage_InvalidPeriod(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/usage?period=week", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["code"] != CodeValidationFailed || body["message"] != "invalid period" {
		t.Errorf("unexpected error body: %v", body)
	}
}

// --- Health, metrics, routing ---

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status: got %v", body["status"])
	}
	checks, _ := body["checks"].(map[string]any)
	if checks["dataset"] != "ok" {
		t.Errorf("dataset check: got %v", checks["dataset"])
	}
}

func TestHealthCheck_EmptyDataset(t *testing.T) {
	repo := restaurantrepo.New(nil)
	srv := NewServer(nil, repo, nil, healthuc.New(repo, nil, nil, zap.NewNop()), nil, nil, zap.NewNop())

	rec := do(t, srv.Routes(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	do(t, h, http.MethodGet, "/health", nil)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("tablefinder_http_requests_total")) {
		t.Error("expected http metrics in exposition")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if decode(t, rec)["code"] != CodeNotFound {
		t.Errorf("expected JSON not_found body, got %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/search", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
