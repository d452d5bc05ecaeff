package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCORS_PreflightAnsweredDirectly(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/actions/generate", nil)
	rr := httptest.NewRecorder()
	CORS()(inner).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("preflight body = %q, want empty", rr.Body.String())
	}
	if called {
		t.Error("preflight must not reach the inner handler")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}

func TestCORS_PassesNonPreflightThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/actions/generate", nil)
	rr := httptest.NewRecorder()
	CORS()(noopHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("CORS headers must be present on actual requests too")
	}
}

func TestRateLimiter_BlocksAfterBudget(t *testing.T) {
	rl := NewRateLimiter(3, silentLogger())
	defer rl.Stop()
	wrapped := rl.Middleware()(noopHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:51234"
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 3; i++ {
		if code := send(); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 (within budget)", i+1, code)
		}
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("request over budget status = %d, want 429", code)
	}
}

func TestRateLimiter_BucketsPerIP(t *testing.T) {
	rl := NewRateLimiter(1, silentLogger())
	defer rl.Stop()
	wrapped := rl.Middleware()(noopHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("203.0.113.7:1000"); code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", code)
	}
	if code := send("203.0.113.7:2000"); code != http.StatusTooManyRequests {
		t.Errorf("same IP new port status = %d, want 429 (port must not split the bucket)", code)
	}
	if code := send("198.51.100.9:1000"); code != http.StatusOK {
		t.Errorf("different IP status = %d, want 200 (independent bucket)", code)
	}
	if rl.Size() != 2 {
		t.Errorf("tracked IPs = %d, want 2", rl.Size())
	}
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(1, silentLogger())
	defer rl.Stop()
	wrapped := rl.Middleware()(noopHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:1000"
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response must carry Retry-After")
	}
}

func TestLogger_PassesResponseThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("body"))
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	rr := httptest.NewRecorder()
	Logger(silentLogger())(inner).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 (wrapper must delegate WriteHeader)", rr.Code)
	}
	if rr.Body.String() != "body" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "body")
	}
}
