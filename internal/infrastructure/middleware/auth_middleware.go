package middleware

import (
	"net/http"
	"strings"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/services"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	tenantKey = "tenant_id"
	claimsKey = "claims"
)

// AuthMiddleware requires a tenant token, from the Authorization header or,
// for browser WebSocket upgrades, the token query parameter.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperrors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		c.Set(tenantKey, claims.TenantID)
		c.Set(claimsKey, claims)

		ctx := services.ContextWithClaims(c.Request.Context(), claims)
		ctx = logger.WithTenant(ctx, string(claims.TenantID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects callers whose token role is below required.
func RequireRole(authService services.AuthService, required domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := services.ClaimsFromContext(c.Request.Context())
		if err == nil {
			err = authService.CheckRole(claims, required)
		}
		if err != nil {
			_ = c.Error(apperrors.NewAppError(apperrors.ErrCodeUnauthorized,
				"your account cannot control cameras", http.StatusForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// TenantID returns the tenant set by AuthMiddleware.
func TenantID(c *gin.Context) (domain.TenantID, bool) {
	v, ok := c.Get(tenantKey)
	if !ok {
		return "", false
	}
	id, ok := v.(domain.TenantID)
	return id, ok && id != ""
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthorizedError("authorization header required")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.NewUnauthorizedError("invalid authorization header format")
	}
	return parts[1], nil
}
