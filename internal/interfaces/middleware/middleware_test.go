package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.OPTIONS("/ping", func(c *gin.Context) { c.String(http.StatusOK, "options") })
	return r
}

func doRequest(r http.Handler, method, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	r := newEngine(RateLimit(1, 2))

	for i := 0; i < 2; i++ {
		if w := doRequest(r, http.MethodGet, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	if w := doRequest(r, http.MethodGet, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	// Another client has its own bucket.
	if w := doRequest(r, http.MethodGet, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	r := newEngine(RateLimit(0, 0))
	for i := 0; i < 10; i++ {
		if w := doRequest(r, http.MethodGet, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimiterStore_SweepsIdleEntries(t *testing.T) {
	now := time.Now()
	s := newRateLimiterStore(1, 1)
	s.now = func() time.Time { return now }

	s.getLimiter("a")
	s.getLimiter("b")
	if s.size() != 2 {
		t.Fatalf("size = %d, want 2", s.size())
	}

	now = now.Add(limiterIdleTTL + limiterSweepEvery)
	s.getLimiter("c")

	if s.size() != 1 {
		t.Errorf("size after sweep = %d, want 1", s.size())
	}
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS())

	w := doRequest(r, http.MethodOptions, "10.0.0.1:1234")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}

	if w := doRequest(r, http.MethodGet, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", w.Code)
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := newEngine(RequestLogger(logger.NewNopLogger()))
	if w := doRequest(r, http.MethodGet, "10.0.0.1:1234"); w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
