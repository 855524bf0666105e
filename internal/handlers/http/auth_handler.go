package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/services"
	"onebarn/pkg/errors"
	"onebarn/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceKeyHeader carries the shared key of the dashboard backend.
const ServiceKeyHeader = "X-Service-Key"

// AuthHandler issues tenant tokens to the dashboard backend, which has already
// authenticated the user, and lets the UI inspect its own session.
type AuthHandler struct {
	authService services.AuthService
	serviceKey  string
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, serviceKey string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		serviceKey:  serviceKey,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes registers token issuing on public and the session route on the
// authenticated group.
func (h *AuthHandler) SetupRoutes(public, authenticated *gin.RouterGroup) {
	if h.serviceKey != "" {
		public.POST("/auth/token", h.IssueToken)
	}
	authenticated.GET("/auth/session", h.Session)
}

type IssueTokenRequest struct {
	TenantID string          `json:"tenantId" binding:"required,max=64"`
	UserID   string          `json:"userId" binding:"max=64"`
	Role     domain.UserRole `json:"role"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	key := c.GetHeader(ServiceKeyHeader)
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.serviceKey)) != 1 {
		_ = c.Error(errors.NewUnauthorizedError("invalid service key"))
		return
	}

	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.TenantID = strings.TrimSpace(req.TenantID)
	if err := validation.ValidateCameraID(req.TenantID); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid tenant id"))
		return
	}
	switch req.Role {
	case "", domain.RoleViewer, domain.RoleOwner:
	default:
		_ = c.Error(errors.NewInvalidInputError("role must be owner or viewer"))
		return
	}

	userID := domain.UserID(req.UserID)
	if userID == "" {
		userID = domain.UserID(uuid.New().String())
	}

	token, err := h.authService.GenerateToken(domain.TenantID(req.TenantID), userID, req.Role)
	if err != nil {
		_ = c.Error(errors.WrapInternal(err, "failed to generate token"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}

func (h *AuthHandler) Session(c *gin.Context) {
	claims, err := services.ClaimsFromContext(c.Request.Context())
	if err != nil {
		_ = c.Error(errors.NewUnauthorizedError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenantId": claims.TenantID,
		"userId":   claims.UserID,
		"role":     claims.Role,
	})
}
