package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestTriggerMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		TriggerRate:     2, // 2 req/sec
		TriggerBurst:    5,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.TriggerMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusAccepted)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusAccepted {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusAccepted)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestTriggerMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		TriggerRate:     1,
		TriggerBurst:    2,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.TriggerMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
		req.RemoteAddr = "10.0.0.2:51234"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusAccepted {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusAccepted)
		}
	}

	// 3回目はレート制限に引っかかる
	req := httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
	req.RemoteAddr = "10.0.0.2:51234"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

func TestTriggerMiddleware_SetsRetryAfterHeader(t *testing.T) {
	cfg := RateLimiterConfig{
		TriggerRate:     1, // 1 req/sec
		TriggerBurst:    1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.TriggerMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
	req.RemoteAddr = "10.0.0.3:51234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	req = httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
	req.RemoteAddr = "10.0.0.3:51234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("Retry-Afterヘッダーが設定されていない")
	}
	sec, err := strconv.Atoi(retryAfter)
	if err != nil || sec < 1 {
		t.Errorf("Retry-After = %q, 1以上の整数秒であるべき", retryAfter)
	}
}

func TestTriggerMiddleware_LimitsPerClient(t *testing.T) {
	cfg := RateLimiterConfig{
		TriggerRate:     1,
		TriggerBurst:    1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.TriggerMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	// client-aがバーストを使い切る
	req := httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
	req.RemoteAddr = "10.0.1.1:40000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// client-bは独立したバケットなので通る
	req = httptest.NewRequest(http.MethodPost, "/api/monitor/run", nil)
	req.RemoteAddr = "10.0.1.2:40000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusAccepted {
		t.Errorf("別クライアントが巻き添えで制限された: status = %d", w.Result().StatusCode)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.LimiterCount())
	}
}
