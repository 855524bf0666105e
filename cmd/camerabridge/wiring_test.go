package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/infrastructure/bridge"
	"onebarn/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeBridge(t *testing.T) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestAPIOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.Token = "svc-token"

	opts := apiOptions(cfg)

	assert.Equal(t, cfg.API.BaseURL, opts.BaseURL)
	assert.Equal(t, "svc-token", opts.Token)
	assert.Equal(t, cfg.API.Retry.MaxAttempts, opts.Retry.MaxAttempts)
	assert.Equal(t, cfg.API.CircuitBreaker.FailureThreshold, opts.CircuitBreaker.FailureThreshold)
}

func TestBridgeFactory_RoutesSimulatedStreams(t *testing.T) {
	cfg := config.DefaultConfig()
	client, sampler := newBridgeFactory(cfg, zap.NewNop().Sugar())("bridge.local", 2000)

	require.NotNil(t, client)
	routing, ok := sampler.(bridge.RoutingSampler)
	require.True(t, ok)
	assert.Same(t, client, routing.Live)
	assert.Equal(t, "hls", client.Protocol())
}

func TestStack_BuildBridgeAgainstLiveBridge(t *testing.T) {
	host, port := fakeBridge(t)

	cfg := config.DefaultConfig()
	cfg.Bridge.Host = host
	cfg.Bridge.Port = port
	cfg.Bridge.Timeout = time.Second

	ctx := context.Background()
	st := newStack(ctx, cfg, nil, zap.NewNop().Sugar())
	defer st.close()

	camBridge, err := st.buildBridge(ctx, "willow-barn")
	require.NoError(t, err)
	defer camBridge.Destroy()

	assert.True(t, camBridge.Connectivity().Connected)

	res, err := camBridge.DiscoverCameras(ctx)
	require.NoError(t, err)
	assert.False(t, res.UsedFallback)
	require.Len(t, res.Cameras, 1)
	assert.Equal(t, domain.CameraID("barn-cam-1"), res.Cameras[0].ID)
	assert.Equal(t, domain.TenantID("willow-barn"), res.Cameras[0].TenantID)
}

func TestStack_BuildBridgeRejectsEmptyTenant(t *testing.T) {
	cfg := config.DefaultConfig()
	st := newStack(context.Background(), cfg, nil, zap.NewNop().Sugar())
	defer st.close()

	_, err := st.buildBridge(context.Background(), "")
	assert.Error(t, err)
}
