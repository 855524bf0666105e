package domain

import (
	"encoding/base64"
	"time"
)

type CameraID string
type TenantID string

type CameraStatus string

const (
	CameraOnline     CameraStatus = "online"
	CameraOffline    CameraStatus = "offline"
	CameraConnecting CameraStatus = "connecting"
)

type Camera struct {
	ID           CameraID           `json:"id"`
	MACAddress   string             `json:"macAddress"`
	Name         string             `json:"name"`
	Model        string             `json:"model"`
	Firmware     string             `json:"firmwareVersion"`
	Address      string             `json:"address"`
	Capabilities CameraCapabilities `json:"capabilities"`
	Settings     CameraSettings     `json:"settings"`
	Status       CameraStatus       `json:"status"`
	LastSeen     time.Time          `json:"lastSeen"`
	TenantID     TenantID           `json:"tenantId"`
	IsFallback   bool               `json:"isFallback"`
}

type CameraCapabilities struct {
	PTZ             bool `json:"ptz"`
	Audio           bool `json:"audio"`
	NightVision     bool `json:"nightVision"`
	MotionDetection bool `json:"motionDetection"`
	Recording       bool `json:"recording"`
}

type CameraSettings struct {
	Resolution        string `json:"resolution"`
	FrameRate         int    `json:"frameRate"`
	Bitrate           int    `json:"bitrate"` // kbps
	MotionSensitivity int    `json:"motionSensitivity"`
	RecordingEnabled  bool   `json:"recordingEnabled"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	Resolution        *string `json:"resolution,omitempty"`
	FrameRate         *int    `json:"frameRate,omitempty"`
	Bitrate           *int    `json:"bitrate,omitempty"`
	MotionSensitivity *int    `json:"motionSensitivity,omitempty"`
	RecordingEnabled  *bool   `json:"recordingEnabled,omitempty"`
}

func (p SettingsPatch) IsEmpty() bool {
	return p.Resolution == nil && p.FrameRate == nil && p.Bitrate == nil &&
		p.MotionSensitivity == nil && p.RecordingEnabled == nil
}

// Apply returns s with every non-nil field of p written over it.
func (p SettingsPatch) Apply(s CameraSettings) CameraSettings {
	if p.Resolution != nil {
		s.Resolution = *p.Resolution
	}
	if p.FrameRate != nil {
		s.FrameRate = *p.FrameRate
	}
	if p.Bitrate != nil {
		s.Bitrate = *p.Bitrate
	}
	if p.MotionSensitivity != nil {
		s.MotionSensitivity = *p.MotionSensitivity
	}
	if p.RecordingEnabled != nil {
		s.RecordingEnabled = *p.RecordingEnabled
	}
	return s
}

type PTZAction string

const (
	PTZPanLeft  PTZAction = "pan_left"
	PTZPanRight PTZAction = "pan_right"
	PTZTiltUp   PTZAction = "tilt_up"
	PTZTiltDown PTZAction = "tilt_down"
	PTZZoomIn   PTZAction = "zoom_in"
	PTZZoomOut  PTZAction = "zoom_out"
	PTZHome     PTZAction = "home"
	PTZPreset   PTZAction = "preset"
)

func (a PTZAction) Valid() bool {
	switch a {
	case PTZPanLeft, PTZPanRight, PTZTiltUp, PTZTiltDown, PTZZoomIn, PTZZoomOut, PTZHome, PTZPreset:
		return true
	}
	return false
}

// RequiresValue reports whether the action needs a numeric argument.
func (a PTZAction) RequiresValue() bool {
	return a == PTZPreset
}

type PTZCommand struct {
	CameraID CameraID  `json:"cameraId"`
	Action   PTZAction `json:"action"`
	Value    *float64  `json:"value,omitempty"`
}

// FallbackCameras returns the fixed demo set shown while the bridge is unreachable.
// Every call returns fresh copies, so callers may mutate the result.
func FallbackCameras(tenantID TenantID, now time.Time) []*Camera {
	return []*Camera{
		{
			ID:         "demo-stall-1",
			MACAddress: "00:00:5E:00:53:01",
			Name:       "Demo Stall 1",
			Model:      "Demo PTZ Camera",
			Firmware:   "demo",
			Address:    "demo://stall-1",
			Capabilities: CameraCapabilities{
				PTZ: true, Audio: true, NightVision: true, MotionDetection: true, Recording: true,
			},
			Settings: CameraSettings{
				Resolution: "1920x1080", FrameRate: 30, Bitrate: 4000, MotionSensitivity: 50, RecordingEnabled: true,
			},
			Status:     CameraOnline,
			LastSeen:   now,
			TenantID:   tenantID,
			IsFallback: true,
		},
		{
			ID:         "demo-paddock",
			MACAddress: "00:00:5E:00:53:02",
			Name:       "Demo Paddock",
			Model:      "Demo Bullet Camera",
			Firmware:   "demo",
			Address:    "demo://paddock",
			Capabilities: CameraCapabilities{
				NightVision: true, MotionDetection: true,
			},
			Settings: CameraSettings{
				Resolution: "1280x720", FrameRate: 25, Bitrate: 1500, MotionSensitivity: 40,
			},
			Status:     CameraOffline,
			LastSeen:   now.Add(-time.Hour),
			TenantID:   tenantID,
			IsFallback: true,
		},
		{
			ID:         "demo-foaling-box",
			MACAddress: "00:00:5E:00:53:03",
			Name:       "Demo Foaling Box",
			Model:      "Demo Dome Camera",
			Firmware:   "demo",
			Address:    "demo://foaling-box",
			Capabilities: CameraCapabilities{
				Audio: true, NightVision: true, MotionDetection: true, Recording: true,
			},
			Settings: CameraSettings{
				Resolution: "1280x720", FrameRate: 15, Bitrate: 1000, MotionSensitivity: 70, RecordingEnabled: true,
			},
			Status:     CameraConnecting,
			LastSeen:   now,
			TenantID:   tenantID,
			IsFallback: true,
		},
	}
}

// FallbackCamera looks up one camera of the demo set.
func FallbackCamera(tenantID TenantID, id CameraID, now time.Time) (*Camera, bool) {
	for _, c := range FallbackCameras(tenantID, now) {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

type Snapshot struct {
	CameraID    CameraID
	ContentType string
	Data        []byte
	TakenAt     time.Time
}

// DataURL encodes the image for direct display in an <img> element.
func (s Snapshot) DataURL() string {
	return "data:" + s.ContentType + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}
