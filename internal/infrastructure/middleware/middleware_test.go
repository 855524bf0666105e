package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/services"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(auth services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.Use(AuthMiddleware(auth))
	router.GET("/me", func(c *gin.Context) {
		tenant, _ := TenantID(c)
		c.JSON(http.StatusOK, gin.H{"tenant": tenant})
	})
	router.POST("/ptz", RequireRole(auth, domain.RoleOwner), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func do(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService("test-secret", time.Hour)
	router := newTestRouter(auth)

	w := do(router, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = do(router, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateToken("ranch-1", "u-1", domain.RoleViewer)
	require.NoError(t, err)
	w = do(router, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"ranch-1"}`, w.Body.String())

	w = do(router, http.MethodGet, "/me?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code, "token query parameter is accepted")
}

func TestRequireRole(t *testing.T) {
	auth := services.NewAuthService("test-secret", time.Hour)
	router := newTestRouter(auth)

	viewer, _ := auth.GenerateToken("ranch-1", "u-1", domain.RoleViewer)
	owner, _ := auth.GenerateToken("ranch-1", "u-2", domain.RoleOwner)

	assert.Equal(t, http.StatusForbidden, do(router, http.MethodPost, "/ptz", viewer).Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPost, "/ptz", owner).Code)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/suspended", func(c *gin.Context) {
		_ = c.Error(apperrors.NewSuspendedError("2.3s"))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("disk on fire"))
	})
	router.GET("/details", func(c *gin.Context) {
		_ = c.Error(apperrors.NewInvalidInputError("bad frame rate").WithContext("field", "frameRate"))
	})

	w := do(router, http.MethodGet, "/suspended", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"SUSPENDED"`)

	w = do(router, http.MethodGet, "/plain", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")

	w = do(router, http.MethodGet, "/details", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"INVALID_INPUT","message":"bad frame rate","details":{"field":"frameRate"}}`, w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(router, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type httpRecorder struct {
	routes []string
	status []int
}

func (r *httpRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, method+" "+route)
	r.status = append(r.status, status)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &httpRecorder{}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(logger.NewContextLogger(zap.New(core)), rec))
	router.GET("/cameras/:cameraId", func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithTenant(c.Request.Context(), "ranch-1"))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/cameras/stall-a", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, []string{"GET /cameras/:cameraId"}, rec.routes)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, int64(200), fields["status_code"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/cameras/stall-a", nil)
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Header().Get(RequestIDHeader), "req_")
}
