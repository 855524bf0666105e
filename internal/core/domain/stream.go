package domain

import (
	"time"
)

type StreamID string

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityAuto   Quality = "auto"
)

type Stream struct {
	ID         StreamID      `json:"id"`
	CameraID   CameraID      `json:"cameraId"`
	URL        string        `json:"url"`
	Protocol   string        `json:"protocol"`
	Resolution string        `json:"resolution"`
	FrameRate  int           `json:"frameRate"`
	Bitrate    int           `json:"bitrate"` // kbps
	Active     bool          `json:"active"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    *time.Time    `json:"endedAt,omitempty"`
	ErrorCount int           `json:"errorCount"`
	Quality    Quality       `json:"quality"`
	Metrics    StreamMetrics `json:"metrics"`
	Simulated  bool          `json:"simulated"`
}

// Clone returns a copy safe to hand outside the owning registry.
func (s *Stream) Clone() *Stream {
	c := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	return &c
}

type StreamQuality struct {
	Quality Quality
	Bitrate int
	Width   int
	Height  int
	FPS     int
}
