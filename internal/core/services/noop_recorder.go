package services

import (
	"time"

	"onebarn/internal/core/domain"
)

type noopRecorder struct{}

func (noopRecorder) RecordProbe(domain.TenantID, bool, time.Duration)                           {}
func (noopRecorder) SetConnectivity(domain.TenantID, domain.ConnectivityState)                  {}
func (noopRecorder) SetActiveStreams(domain.TenantID, int)                                      {}
func (noopRecorder) RecordStreamMetrics(domain.TenantID, domain.CameraID, domain.StreamMetrics) {}
func (noopRecorder) RecordEvent(domain.TenantID, domain.EventName)                              {}
