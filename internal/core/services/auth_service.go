package services

import (
	"context"
	"errors"
	"time"

	"onebarn/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

type AuthService interface {
	GenerateToken(tenantID domain.TenantID, userID domain.UserID, role domain.UserRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	CheckRole(claims *Claims, required domain.UserRole) error
}

// Claims scope a dashboard session to one tenant (barn) and its cameras.
type Claims struct {
	TenantID domain.TenantID `json:"tenant_id"`
	UserID   domain.UserID   `json:"user_id"`
	Role     domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	now            func() time.Time
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		now:            time.Now,
	}
}

func (s *authService) GenerateToken(tenantID domain.TenantID, userID domain.UserID, role domain.UserRole) (string, error) {
	if tenantID == "" {
		return "", errors.New("tenant id is required")
	}
	if role == "" {
		role = domain.RoleViewer
	}

	now := s.now()
	claims := &Claims{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TenantID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// CheckRole passes owners for everything and viewers for viewer-level actions.
func (s *authService) CheckRole(claims *Claims, required domain.UserRole) error {
	roleHierarchy := map[domain.UserRole]int{
		domain.RoleViewer: 1,
		domain.RoleOwner:  2,
	}

	if claims == nil || roleHierarchy[claims.Role] < roleHierarchy[required] {
		return ErrUnauthorized
	}
	return nil
}

type claimsKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	if !ok || claims == nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
