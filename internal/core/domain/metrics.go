package domain

import "time"

type StreamMetrics struct {
	Bitrate    int           `json:"bitrate"` // kbps
	FPS        int           `json:"fps"`
	Latency    time.Duration `json:"latency"`
	PacketLoss float64       `json:"packetLoss"` // percent
	Bandwidth  int           `json:"bandwidth"`  // kbps
	SampledAt  time.Time     `json:"sampledAt"`
}

type BridgeMetrics struct {
	Connected           bool
	ConsecutiveFailures int
	Backoff             time.Duration
	ProbeDuration       time.Duration
	ActiveStreams       int
}
