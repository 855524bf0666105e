package main

import (
	"context"
	"fmt"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/internal/core/services"
	"onebarn/internal/infrastructure/bridge"
	"onebarn/internal/infrastructure/distributed"
	"onebarn/internal/infrastructure/emitter"
	"onebarn/internal/infrastructure/events"
	"onebarn/internal/infrastructure/monitoring"
	"onebarn/internal/infrastructure/repositories"
	"onebarn/pkg/circuitbreaker"
	"onebarn/pkg/config"
	"onebarn/pkg/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func bridgeOptions(cfg *config.Config, host string, port int) bridge.Options {
	return bridge.Options{
		Host:         host,
		Port:         port,
		ProbePath:    cfg.Bridge.ProbePath,
		SnapshotPath: cfg.Bridge.SnapshotPath,
		StreamPath:   cfg.Bridge.StreamPath,
		Protocol:     cfg.Bridge.StreamProtocol,
		ProbeSource:  cfg.Bridge.ProbeSource,
		Timeout:      cfg.Bridge.Timeout,
	}
}

func apiOptions(cfg *config.Config) bridge.APIOptions {
	return bridge.APIOptions{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Retry: retry.Config{
			Enabled:      cfg.API.Retry.Enabled,
			MaxAttempts:  cfg.API.Retry.MaxAttempts,
			InitialDelay: cfg.API.Retry.InitialDelay,
			MaxDelay:     cfg.API.Retry.MaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold:    cfg.API.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.API.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.API.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: 1,
		},
	}
}

// newBridgeFactory builds a bridge client per tenant; simulated streams on
// demo cameras are sampled locally.
func newBridgeFactory(cfg *config.Config, log *zap.SugaredLogger) services.BridgeFactory {
	return func(host string, port int) (ports.BridgeClient, ports.MetricsSampler) {
		client := bridge.NewClient(bridgeOptions(cfg, host, port), log)
		return client, bridge.RoutingSampler{
			Live:      client,
			Simulated: bridge.NewSimulatedSampler(time.Now().UnixNano()),
		}
	}
}

const mqttLeaseTTL = 30 * time.Second

// stack holds the process-wide adapters shared by every tenant bridge.
type stack struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	instanceID string

	repos     *repositories.RepositoryFactory
	api       *bridge.APIClient
	collector *monitoring.PrometheusCollector
	mirror    *distributed.EventMirror
	mqtt      *emitter.MQTTAlertEmitter
	lease     *distributed.LeasedSink
	sinks     []ports.EventSink
}

func newStack(ctx context.Context, cfg *config.Config, collector *monitoring.PrometheusCollector, log *zap.SugaredLogger) *stack {
	s := &stack{
		cfg:        cfg,
		log:        log,
		instanceID: uuid.New().String(),
		repos:      repositories.NewRepositoryFactory(ctx, cfg, log),
		api:        bridge.NewAPIClient(apiOptions(cfg), log),
		collector:  collector,
	}

	if client := s.repos.RedisClient(); client != nil {
		s.mirror = distributed.NewEventMirror(client, s.instanceID, cfg.Redis.Channel, log)
		s.sinks = append(s.sinks, s.mirror)
	}

	if cfg.MQTT.Enabled {
		mqttEmitter, err := emitter.Connect(ctx, cfg.MQTT.Broker, cfg.MQTT.ClientID+"-"+s.instanceID[:8],
			cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
		if err != nil {
			log.Warnw("mqtt unavailable, alerts will not be forwarded", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			s.mqtt = mqttEmitter
			if client := s.repos.RedisClient(); client != nil {
				// Instances sharing Redis take turns per tenant so each alert is published once.
				s.lease = distributed.NewLeasedSink(client, mqttEmitter, cfg.Redis.Channel+":lease:mqtt:", mqttLeaseTTL, log)
				s.sinks = append(s.sinks, s.lease)
			} else {
				s.sinks = append(s.sinks, mqttEmitter)
			}
		}
	}

	return s
}

// buildBridge creates one tenant's camera bridge with its own registries and bus.
func (s *stack) buildBridge(ctx context.Context, tenantID domain.TenantID, opts ...services.Option) (ports.CameraBridge, error) {
	deps := services.Dependencies{
		NewBridge: newBridgeFactory(s.cfg, s.log),
		API:       s.api,
		Cameras:   s.repos.CreateCameraRepository(),
		Streams:   s.repos.CreateStreamRepository(),
		Bus:       events.NewBus(s.log),
		Logger:    s.log,
	}
	if s.collector != nil {
		deps.Recorder = s.collector
	}
	if len(s.sinks) > 0 {
		opts = append(opts, services.WithEventSinks(s.sinks...))
	}

	svc, err := services.NewBridgeService(ctx, tenantID, s.cfg, deps, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create camera bridge for %s: %w", tenantID, err)
	}
	return svc, nil
}

func (s *stack) close() {
	if s.lease != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.lease.Release(ctx)
		cancel()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if err := s.repos.Close(); err != nil {
		s.log.Errorw("error closing repository factory", "error", err)
	}
}
