package domain

import "time"

type UserID string

type User struct {
	ID        UserID
	TenantID  TenantID
	Username  string
	CreatedAt time.Time
}

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleViewer UserRole = "viewer"
)
