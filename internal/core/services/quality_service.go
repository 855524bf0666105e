package services

import (
	"onebarn/internal/core/domain"
)

// headroom a link needs above a profile's bitrate before auto selects it
const bandwidthHeadroom = 1.25

type QualityService struct {
	profiles map[domain.Quality]domain.StreamQuality
}

func NewQualityService() *QualityService {
	return &QualityService{
		profiles: map[domain.Quality]domain.StreamQuality{
			domain.QualityHigh: {
				Quality: domain.QualityHigh,
				Bitrate: 4000,
				Width:   1920,
				Height:  1080,
				FPS:     30,
			},
			domain.QualityMedium: {
				Quality: domain.QualityMedium,
				Bitrate: 1500,
				Width:   1280,
				Height:  720,
				FPS:     25,
			},
			domain.QualityLow: {
				Quality: domain.QualityLow,
				Bitrate: 500,
				Width:   640,
				Height:  360,
				FPS:     15,
			},
		},
	}
}

// Profile returns the fixed profile for low, medium or high.
func (qs *QualityService) Profile(quality domain.Quality) (domain.StreamQuality, bool) {
	p, ok := qs.profiles[quality]
	return p, ok
}

// Resolve maps a requested tier to a concrete profile. Auto picks the best
// profile the last sampled bandwidth (kbps) can carry, or medium when nothing
// has been sampled yet.
func (qs *QualityService) Resolve(requested domain.Quality, lastBandwidth int) domain.StreamQuality {
	if requested != domain.QualityAuto {
		if p, ok := qs.profiles[requested]; ok {
			return p
		}
		return qs.profiles[domain.QualityMedium]
	}
	if lastBandwidth <= 0 {
		return qs.profiles[domain.QualityMedium]
	}
	return qs.DetermineOptimalQuality(lastBandwidth)
}

func (qs *QualityService) DetermineOptimalQuality(bandwidth int) domain.StreamQuality {
	for _, q := range []domain.Quality{domain.QualityHigh, domain.QualityMedium} {
		p := qs.profiles[q]
		if float64(bandwidth) >= float64(p.Bitrate)*bandwidthHeadroom {
			return p
		}
	}
	return qs.profiles[domain.QualityLow]
}
