package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// CameraIDRegex validates camera ID format (bridge source names)
	CameraIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// ResolutionRegex validates WIDTHxHEIGHT
	ResolutionRegex = regexp.MustCompile(`^([1-9][0-9]{2,3})x([1-9][0-9]{2,3})$`)
)

// ValidateCameraID validates camera ID
func ValidateCameraID(cameraID string) error {
	if cameraID == "" {
		return fmt.Errorf("camera ID is required")
	}
	if len(cameraID) > 100 {
		return fmt.Errorf("camera ID is too long (max 100 characters)")
	}
	if !CameraIDRegex.MatchString(cameraID) {
		return fmt.Errorf("invalid camera ID format")
	}
	return nil
}

// ValidateStreamID validates stream ID
func ValidateStreamID(streamID string) error {
	if streamID == "" {
		return fmt.Errorf("stream ID is required")
	}
	if len(streamID) > 150 {
		return fmt.Errorf("stream ID is too long (max 150 characters)")
	}
	if !CameraIDRegex.MatchString(streamID) {
		return fmt.Errorf("invalid stream ID format")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateBitrate validates bitrate value in kbps
func ValidateBitrate(bitrate int) error {
	if bitrate < 100 {
		return fmt.Errorf("bitrate must be at least 100 kbps")
	}
	if bitrate > 20000 {
		return fmt.Errorf("bitrate is too high (max 20000 kbps)")
	}
	return nil
}

// ValidateFrameRate validates frames per second
func ValidateFrameRate(fps int) error {
	if fps < 1 || fps > 60 {
		return fmt.Errorf("frame rate must be between 1 and 60 fps")
	}
	return nil
}

// ValidateResolution validates a WIDTHxHEIGHT resolution string
func ValidateResolution(resolution string) error {
	if !ResolutionRegex.MatchString(resolution) {
		return fmt.Errorf("invalid resolution %q (expected WIDTHxHEIGHT, e.g. 1280x720)", resolution)
	}
	return nil
}

// ValidateMotionSensitivity validates the 0-100 motion sensitivity scale
func ValidateMotionSensitivity(sensitivity int) error {
	if sensitivity < 0 || sensitivity > 100 {
		return fmt.Errorf("motion sensitivity must be between 0 and 100")
	}
	return nil
}

// ValidateQuality validates quality level
func ValidateQuality(quality string) error {
	switch quality {
	case "low", "medium", "high", "auto":
		return nil
	}
	return fmt.Errorf("invalid quality level (must be low, medium, high, or auto)")
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(s))
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
