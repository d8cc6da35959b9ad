package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := common.InitLogger("error"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newDedupRouter(window time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(Deduplication(&config.Config{DedupWindow: window}))
	r.POST("/pantry/ingredients", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "added"})
	})
	r.DELETE("/pantry/ingredients/:name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	})
	return r
}

func doRequest(r *gin.Engine, method, path, user, body string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestDeduplicationBlocksRapidRepeat(t *testing.T) {
	r := newDedupRouter(time.Minute)

	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusTooManyRequests {
		t.Fatalf("duplicate request status = %d, want 429", code)
	}
}

func TestDeduplicationIsolatesUsers(t *testing.T) {
	r := newDedupRouter(time.Minute)

	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("alice status = %d, want 200", code)
	}
	// 不同使用者送相同內容不是重複
	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "bob", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("bob status = %d, want 200", code)
	}
}

func TestDeduplicationAllowsDifferentBodies(t *testing.T) {
	r := newDedupRouter(time.Minute)

	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", code)
	}
	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"milk"}`); code != http.StatusOK {
		t.Fatalf("different body status = %d, want 200", code)
	}
}

func TestDeduplicationIgnoresDelete(t *testing.T) {
	r := newDedupRouter(time.Minute)

	// DELETE 冪等，重送不該被擋
	for i := 0; i < 2; i++ {
		if code := doRequest(r, http.MethodDelete, "/pantry/ingredients/egg", "alice", ""); code != http.StatusOK {
			t.Fatalf("delete #%d status = %d, want 200", i+1, code)
		}
	}
}

func TestDeduplicationWindowExpiry(t *testing.T) {
	r := newDedupRouter(10 * time.Millisecond)

	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", code)
	}
	time.Sleep(30 * time.Millisecond)
	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("status after window = %d, want 200", code)
	}
}

func newRateLimitRouter(requests int, window time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(requests, window))
	r.GET("/api/v1/suggestions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"recipes": []string{}})
	})
	return r
}

func TestRateLimitPerUser(t *testing.T) {
	r := newRateLimitRouter(2, time.Minute)

	for i := 0; i < 2; i++ {
		if code := doRequest(r, http.MethodGet, "/api/v1/suggestions", "alice", ""); code != http.StatusOK {
			t.Fatalf("alice request #%d status = %d, want 200", i+1, code)
		}
	}
	if code := doRequest(r, http.MethodGet, "/api/v1/suggestions", "alice", ""); code != http.StatusTooManyRequests {
		t.Fatalf("alice over quota status = %d, want 429", code)
	}

	// alice 打爆額度不影響 bob
	if code := doRequest(r, http.MethodGet, "/api/v1/suggestions", "bob", ""); code != http.StatusOK {
		t.Fatalf("bob status = %d, want 200", code)
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)

	if !rl.Allow("alice") {
		t.Fatalf("first request should pass")
	}
	if rl.Allow("alice") {
		t.Fatalf("second immediate request should be blocked")
	}
	time.Sleep(80 * time.Millisecond)
	if !rl.Allow("alice") {
		t.Fatalf("request after refill should pass")
	}
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(16))
	r.POST("/pantry/ingredients", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "added"})
	})

	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", `{"name":"egg"}`); code != http.StatusOK {
		t.Fatalf("small body status = %d, want 200", code)
	}
	big := strings.Repeat("x", 64)
	if code := doRequest(r, http.MethodPost, "/pantry/ingredients", "alice", big); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d, want 413", code)
	}
}
