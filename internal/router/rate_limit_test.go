package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newRateLimitedEngine(t *testing.T, rule RateLimitRule) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(RateLimitMiddleware(client, rule, KeyByIP))
	r.POST("/checkout", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, mr
}

func postFrom(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.RemoteAddr = ip + ":5678"
	r.ServeHTTP(w, req)
	return w
}

func statusCodeOf(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func TestRateLimitMiddlewareSlidingWindow(t *testing.T) {
	r, _ := newRateLimitedEngine(t, RateLimitRule{Name: "checkout", Prefix: "rl:checkout", WindowSeconds: 1, MaxRequests: 2})

	for i := 0; i < 2; i++ {
		if w := postFrom(r, "1.2.3.4"); !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass, got %s", i+1, w.Body.String())
		}
	}
	w := postFrom(r, "1.2.3.4")
	if code := statusCodeOf(t, w); code != 429 {
		t.Fatalf("third request want 429 got %d", code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("rejected request should carry Retry-After")
	}
	if w := postFrom(r, "5.6.7.8"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("other ip must have its own window, got %s", w.Body.String())
	}

	time.Sleep(1100 * time.Millisecond)
	if w := postFrom(r, "1.2.3.4"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("window should slide after expiry, got %s", w.Body.String())
	}
}

func TestRateLimitMiddlewareRedisDown(t *testing.T) {
	r, mr := newRateLimitedEngine(t, RateLimitRule{Name: "checkout", WindowSeconds: 60, MaxRequests: 2})
	mr.Close()

	if code := statusCodeOf(t, postFrom(r, "1.2.3.4")); code != 500 {
		t.Fatalf("redis failure want 500 got %d", code)
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.POST("/checkout", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		if w := postFrom(r, "1.2.3.4"); !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("limiter without redis should pass through, got %s", w.Body.String())
		}
	}
}
