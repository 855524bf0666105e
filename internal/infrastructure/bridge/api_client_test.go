package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/pkg/circuitbreaker"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAPIClient(t *testing.T, handler http.HandlerFunc, breaker circuitbreaker.Config) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewAPIClient(APIOptions{
		BaseURL: srv.URL + "/api",
		Token:   "secret",
		Timeout: time.Second,
		Retry: retry.Config{
			Enabled:      true,
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
		CircuitBreaker: breaker,
	}, zap.NewNop().Sugar())
}

func TestAPIClient_ControlPTZ(t *testing.T) {
	var got domain.PTZCommand
	c := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cameras/stall-a/ptz", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "ranch-1", r.Header.Get("X-Tenant-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}, circuitbreaker.DefaultConfig())

	v := 3.0
	err := c.ControlPTZ(context.Background(), "ranch-1", domain.PTZCommand{CameraID: "stall-a", Action: domain.PTZPreset, Value: &v})
	require.NoError(t, err)
	assert.Equal(t, domain.PTZPreset, got.Action)
	require.NotNil(t, got.Value)
	assert.Equal(t, 3.0, *got.Value)
}

func TestAPIClient_UpdateSettings(t *testing.T) {
	c := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/cameras/stall-a/settings", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"frameRate": float64(15)}, body)
	}, circuitbreaker.DefaultConfig())

	fps := 15
	require.NoError(t, c.UpdateSettings(context.Background(), "ranch-1", "stall-a", domain.SettingsPatch{FrameRate: &fps}))
}

func TestAPIClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, circuitbreaker.DefaultConfig())

	err := c.ControlPTZ(context.Background(), "t", domain.PTZCommand{CameraID: "c", Action: domain.PTZHome})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAPIClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"preset 9 is not configured"}`))
	}, circuitbreaker.DefaultConfig())

	err := c.ControlPTZ(context.Background(), "t", domain.PTZCommand{CameraID: "c", Action: domain.PTZPreset})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "preset 9 is not configured", apperrors.GetAppError(err).Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestAPIClient_OpenBreakerFailsFast(t *testing.T) {
	var calls int32
	c := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour})

	err := c.ControlPTZ(context.Background(), "t", domain.PTZCommand{CameraID: "c", Action: domain.PTZHome})
	assert.ErrorIs(t, err, apperrors.ErrBridgeUnavailable)
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())
	before := atomic.LoadInt32(&calls)

	err = c.ControlPTZ(context.Background(), "t", domain.PTZCommand{CameraID: "c", Action: domain.PTZHome})
	assert.ErrorIs(t, err, apperrors.ErrBridgeUnavailable)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "open breaker must not reach the API")
}
