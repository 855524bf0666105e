package domain

import "errors"

var (
	ErrCameraNotFound = errors.New("camera not found")
	ErrStreamNotFound = errors.New("stream not found")
	ErrProbeFailed    = errors.New("bridge probe failed")
	ErrInvalidMedia   = errors.New("bridge returned non-media content")
	ErrServiceStopped = errors.New("bridge service destroyed")
)
