package domain

import "time"

type ConnectivityState struct {
	Connected           bool          `json:"connected"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastFailedAttempt   time.Time     `json:"lastFailedAttempt"`
	CurrentBackoff      time.Duration `json:"currentBackoff"`
}

type HealthStatus string

const (
	HealthConnected    HealthStatus = "connected"
	HealthDisconnected HealthStatus = "disconnected"
	HealthSuspended    HealthStatus = "suspended"
)

type HealthResult struct {
	Connected bool
	Status    HealthStatus
	Err       error
}

type DiscoveryResult struct {
	Cameras      []*Camera
	UsedFallback bool
}
