package chi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/tablefinder/internal/logger"
)

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"internal_error"`) {
		t.Errorf("expected JSON error body, got %s", rec.Body.String())
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	var ctxLogged bool
	h := WideEventMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside")
		ctxLogged = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !ctxLogged {
		t.Fatal("handler not called")
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one canonical line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) || fields["path"] != "/x" {
		t.Errorf("fields: got %v", fields)
	}
	if logs.FilterMessage("inside").Len() != 1 {
		t.Error("request logger should be available from context")
	}
}

func TestClientRateLimiter_PerClient(t *testing.T) {
	l := NewClientRateLimiter(2, time.Minute, 2)

	for i := range 2 {
		if ok, _ := l.Reserve("a"); !ok {
			t.Fatalf("request %d for a should pass", i)
		}
	}
	ok, wait := l.Reserve("a")
	if ok {
		t.Fatal("third request for a should be limited")
	}
	if wait <= 0 || wait > 30*time.Second {
		t.Errorf("wait: got %v", wait)
	}
	if ok, _ := l.Reserve("b"); !ok {
		t.Error("b has its own bucket")
	}
}

func TestClientRateLimiter_Refill(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l := NewClientRateLimiter(1, time.Second, 1)
	l.now = func() time.Time { return now }

	if ok, _ := l.Reserve("a"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := l.Reserve("a"); ok {
		t.Fatal("second request should be limited")
	}
	now = now.Add(time.Second)
	if ok, _ := l.Reserve("a"); !ok {
		t.Error("token should refill after the period")
	}
}

func TestClientRateLimiter_PrunesIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l := NewClientRateLimiter(10, time.Second, 10)
	l.now = func() time.Time { return now }

	l.Reserve("a")
	l.Reserve("b")
	if l.Len() != 2 {
		t.Fatalf("expected 2 clients, got %d", l.Len())
	}

	now = now.Add(defaultIdleClientTTL + time.Second)
	l.Reserve("c")
	if l.Len() != 1 {
		t.Errorf("idle clients should be pruned, got %d", l.Len())
	}
}

func TestNewClientRateLimiter_Disabled(t *testing.T) {
	if NewClientRateLimiter(0, time.Second, 5) != nil {
		t.Fatal("zero requests should disable the limiter")
	}
	called := false
	h := RateLimit(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/search", nil))
	if !called {
		t.Error("nil limiter should pass through")
	}
}
