package monitoring

import (
	"strconv"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Connectivity
	bridgeUp            *prometheus.GaugeVec
	consecutiveFailures *prometheus.GaugeVec
	backoffSeconds      *prometheus.GaugeVec
	probesTotal         *prometheus.CounterVec
	probeDuration       *prometheus.HistogramVec

	// Streams
	activeStreams    *prometheus.GaugeVec
	streamBitrate    *prometheus.GaugeVec
	streamPacketLoss *prometheus.GaugeVec
	streamLatency    *prometheus.HistogramVec

	eventsTotal  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the bridge metrics with reg. A nil reg
// uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		bridgeUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_bridge_up",
			Help: "Whether the last probe of the camera bridge succeeded",
		}, []string{"tenant_id"}),

		consecutiveFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_bridge_consecutive_failures",
			Help: "Consecutive failed probes of the camera bridge",
		}, []string{"tenant_id"}),

		backoffSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_bridge_backoff_seconds",
			Help: "Current reconnect backoff of the camera bridge",
		}, []string{"tenant_id"}),

		probesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onebarn_bridge_probes_total",
			Help: "Probes of the camera bridge by result",
		}, []string{"tenant_id", "result"}),

		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onebarn_bridge_probe_duration_seconds",
			Help:    "Duration of camera bridge probes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"tenant_id"}),

		activeStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_streams_active",
			Help: "Number of active camera streams",
		}, []string{"tenant_id"}),

		streamBitrate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_stream_bitrate_kbps",
			Help: "Last sampled bitrate of a camera stream",
		}, []string{"tenant_id", "camera_id"}),

		streamPacketLoss: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onebarn_stream_packet_loss_percent",
			Help: "Last sampled packet loss of a camera stream",
		}, []string{"tenant_id", "camera_id"}),

		streamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onebarn_stream_latency_seconds",
			Help:    "Sampled latency of camera streams",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"tenant_id"}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onebarn_events_total",
			Help: "Events emitted on the bridge event bus",
		}, []string{"tenant_id", "event"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onebarn_http_requests_total",
			Help: "HTTP requests served by route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onebarn_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) RecordProbe(tenantID domain.TenantID, ok bool, duration time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	p.probesTotal.WithLabelValues(string(tenantID), result).Inc()
	p.probeDuration.WithLabelValues(string(tenantID)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) SetConnectivity(tenantID domain.TenantID, state domain.ConnectivityState) {
	up := 0.0
	if state.Connected {
		up = 1
	}
	p.bridgeUp.WithLabelValues(string(tenantID)).Set(up)
	p.consecutiveFailures.WithLabelValues(string(tenantID)).Set(float64(state.ConsecutiveFailures))
	p.backoffSeconds.WithLabelValues(string(tenantID)).Set(state.CurrentBackoff.Seconds())
}

func (p *PrometheusCollector) SetActiveStreams(tenantID domain.TenantID, count int) {
	p.activeStreams.WithLabelValues(string(tenantID)).Set(float64(count))
}

func (p *PrometheusCollector) RecordStreamMetrics(tenantID domain.TenantID, cameraID domain.CameraID, m domain.StreamMetrics) {
	p.streamBitrate.WithLabelValues(string(tenantID), string(cameraID)).Set(float64(m.Bitrate))
	p.streamPacketLoss.WithLabelValues(string(tenantID), string(cameraID)).Set(m.PacketLoss)
	if m.Latency > 0 {
		p.streamLatency.WithLabelValues(string(tenantID)).Observe(m.Latency.Seconds())
	}
}

func (p *PrometheusCollector) RecordEvent(tenantID domain.TenantID, name domain.EventName) {
	p.eventsTotal.WithLabelValues(string(tenantID), string(name)).Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ForgetTenant drops every series labelled with the tenant.
func (p *PrometheusCollector) ForgetTenant(tenantID domain.TenantID) {
	labels := prometheus.Labels{"tenant_id": string(tenantID)}
	for _, vec := range []interface {
		DeletePartialMatch(prometheus.Labels) int
	}{
		p.bridgeUp, p.consecutiveFailures, p.backoffSeconds, p.probesTotal, p.probeDuration,
		p.activeStreams, p.streamBitrate, p.streamPacketLoss, p.streamLatency, p.eventsTotal,
	} {
		vec.DeletePartialMatch(labels)
	}
}

var _ ports.BridgeMetricsRecorder = (*PrometheusCollector)(nil)
