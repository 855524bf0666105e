package services

import (
	"testing"

	"onebarn/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestQualityService_FixedProfiles(t *testing.T) {
	qs := NewQualityService()

	low := qs.Resolve(domain.QualityLow, 0)
	assert.Equal(t, 640, low.Width)
	assert.Equal(t, 360, low.Height)
	assert.Equal(t, 15, low.FPS)
	assert.Equal(t, 500, low.Bitrate)

	high := qs.Resolve(domain.QualityHigh, 100)
	assert.Equal(t, 1920, high.Width)
	assert.Equal(t, 4000, high.Bitrate)
}

func TestQualityService_AutoWithoutSampleIsMedium(t *testing.T) {
	qs := NewQualityService()
	assert.Equal(t, domain.QualityMedium, qs.Resolve(domain.QualityAuto, 0).Quality)
}

func TestQualityService_AutoFollowsBandwidth(t *testing.T) {
	qs := NewQualityService()

	tests := []struct {
		bandwidth int
		want      domain.Quality
	}{
		{6000, domain.QualityHigh},
		{5000, domain.QualityHigh},
		{4999, domain.QualityMedium},
		{1875, domain.QualityMedium},
		{1000, domain.QualityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, qs.Resolve(domain.QualityAuto, tt.bandwidth).Quality, "bandwidth %d", tt.bandwidth)
	}
}

func TestQualityService_UnknownFallsBackToMedium(t *testing.T) {
	qs := NewQualityService()
	assert.Equal(t, domain.QualityMedium, qs.Resolve("ultra", 0).Quality)

	_, ok := qs.Profile(domain.QualityAuto)
	assert.False(t, ok)
}
