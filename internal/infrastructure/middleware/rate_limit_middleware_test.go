package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func rateLimitedRouter(cfg *config.Config, tenant domain.TenantID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	if tenant != "" {
		router.Use(func(c *gin.Context) {
			c.Set(tenantKey, tenant)
			c.Next()
		})
	}
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router http.Handler, remote string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remote
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := rateLimitedRouter(cfg, "")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000").Code)
	}
}

func TestHTTPRateLimitMiddleware_Enabled_RateLimitedPerIP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerSecond = 1
	cfg.RateLimiting.Burst = 1
	router := rateLimitedRouter(cfg, "")

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000").Code)

	w := get(router, "10.0.0.1:1001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2:1000").Code, "other clients have their own budget")
}

func TestHTTPRateLimitMiddleware_KeyedByTenant(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerSecond = 1
	cfg.RateLimiting.Burst = 1
	router := rateLimitedRouter(cfg, "ranch-1")

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.2:1000").Code)
}

func TestRateLimiterStore_PrunesIdleClients(t *testing.T) {
	store := newRateLimiterStore(1, 1)
	now := time.Unix(1700000000, 0)
	store.now = func() time.Time { return now }

	store.getLimiter("a")
	store.getLimiter("b")
	assert.Equal(t, 2, store.size())

	now = now.Add(limiterIdleTTL + 2*time.Minute)
	store.getLimiter("c")
	assert.Equal(t, 1, store.size())
}
