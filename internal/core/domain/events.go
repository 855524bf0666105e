package domain

import "time"

type EventName string

const (
	EventBridgeConnected    EventName = "bridgeConnected"
	EventBridgeDisconnected EventName = "bridgeDisconnected"
	EventStreamStarted      EventName = "streamStarted"
	EventStreamStopped      EventName = "streamStopped"
	EventStreamMetrics      EventName = "streamMetrics"
	EventAlert              EventName = "alert"
	EventError              EventName = "error"
	EventSnapshotTaken      EventName = "snapshotTaken"
)

// AllEvents lists every event name in a stable order.
var AllEvents = []EventName{
	EventBridgeConnected,
	EventBridgeDisconnected,
	EventStreamStarted,
	EventStreamStopped,
	EventStreamMetrics,
	EventAlert,
	EventError,
	EventSnapshotTaken,
}

func (n EventName) Valid() bool {
	for _, e := range AllEvents {
		if e == n {
			return true
		}
	}
	return false
}

// Event is implemented by every payload type; Name selects the variant.
type Event interface {
	Name() EventName
}

type BridgeConnected struct {
	At time.Time `json:"at"`
}

type BridgeDisconnected struct {
	Reason              string    `json:"reason"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	At                  time.Time `json:"at"`
}

type StreamStarted struct {
	Stream *Stream `json:"stream"`
}

type StreamStopped struct {
	Stream *Stream `json:"stream"`
}

type StreamMetricsSampled struct {
	StreamID StreamID      `json:"streamId"`
	CameraID CameraID      `json:"cameraId"`
	Metrics  StreamMetrics `json:"metrics"`
}

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type Alert struct {
	CameraID CameraID      `json:"cameraId"`
	Severity AlertSeverity `json:"severity"`
	Source   string        `json:"source"`
	Message  string        `json:"message"`
	At       time.Time     `json:"at"`
}

type Error struct {
	Operation string   `json:"operation"`
	CameraID  CameraID `json:"cameraId,omitempty"`
	Message   string   `json:"message"`
}

type SnapshotTaken struct {
	CameraID CameraID  `json:"cameraId"`
	DataURL  string    `json:"dataUrl"`
	At       time.Time `json:"at"`
}

func (BridgeConnected) Name() EventName      { return EventBridgeConnected }
func (BridgeDisconnected) Name() EventName   { return EventBridgeDisconnected }
func (StreamStarted) Name() EventName        { return EventStreamStarted }
func (StreamStopped) Name() EventName        { return EventStreamStopped }
func (StreamMetricsSampled) Name() EventName { return EventStreamMetrics }
func (Alert) Name() EventName                { return EventAlert }
func (Error) Name() EventName                { return EventError }
func (SnapshotTaken) Name() EventName        { return EventSnapshotTaken }
