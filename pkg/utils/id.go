package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateStreamID derives a stream id from the owning camera and the creation time.
func GenerateStreamID(cameraID string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d", cameraID, createdAt.UnixNano())
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GenerateEventID generates a unique id for an outbound event envelope
func GenerateEventID() string {
	return uuid.NewString()
}
