package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	hits := 0
	rl.OnLimit = func() { hits++ }

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("1.2.3.4:1000"); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send("1.2.3.4:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected same IP on another port to be throttled, got %d", code)
	}
	if code := send("5.6.7.8:1000"); code != http.StatusOK {
		t.Fatalf("expected other IP to pass, got %d", code)
	}
	if hits != 1 {
		t.Fatalf("expected one rate limit hit, got %d", hits)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.getLimiter("1.2.3.4")
	rl.getLimiter("5.6.7.8")

	if removed := rl.Cleanup(time.Hour); removed != 0 {
		t.Fatalf("expected fresh limiters to stay, removed %d", removed)
	}
	if removed := rl.Cleanup(-time.Second); removed != 2 {
		t.Fatalf("expected idle limiters to be removed, removed %d", removed)
	}
}
