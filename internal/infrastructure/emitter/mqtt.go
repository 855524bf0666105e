package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/pkg/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// publisher is the subset of mqtt.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
}

// MQTTAlertEmitter forwards alerts and connectivity changes to an MQTT broker
// on <prefix>/<tenant>/<event> topics for barn-side devices (sirens, pagers).
type MQTTAlertEmitter struct {
	client publisher
	prefix string
	qos    byte
	events map[domain.EventName]bool
	logger *zap.SugaredLogger
	now    func() time.Time

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

// DefaultForwardedEvents are low-volume events worth waking a device for.
var DefaultForwardedEvents = []domain.EventName{
	domain.EventAlert,
	domain.EventBridgeConnected,
	domain.EventBridgeDisconnected,
	domain.EventError,
}

func newAlertEmitter(client publisher, prefix string, qos byte, logger *zap.SugaredLogger) *MQTTAlertEmitter {
	events := make(map[domain.EventName]bool, len(DefaultForwardedEvents))
	for _, name := range DefaultForwardedEvents {
		events[name] = true
	}
	return &MQTTAlertEmitter{
		client:    client,
		prefix:    prefix,
		qos:       qos,
		events:    events,
		logger:    logger,
		now:       time.Now,
		published: make(map[string]uint64),
	}
}

// Connect dials the broker and returns an emitter publishing through it.
func Connect(ctx context.Context, broker, clientID, prefix string, qos byte, logger *zap.SugaredLogger) (*MQTTAlertEmitter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.Infow("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warnw("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newAlertEmitter(client, prefix, qos, logger), nil
}

// Publish implements ports.EventSink. Events outside the forwarded set are
// dropped silently.
func (e *MQTTAlertEmitter) Publish(ctx context.Context, tenantID domain.TenantID, event domain.Event) error {
	if !e.events[event.Name()] {
		return nil
	}
	if !e.client.IsConnectionOpen() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	env, err := domain.NewEventEnvelope(utils.GenerateEventID(), tenantID, event, e.now())
	if err != nil {
		e.countError()
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := e.Topic(tenantID, event.Name())
	token := e.client.Publish(topic, e.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		e.countError()
		return ctx.Err()
	case <-time.After(publishTimeout):
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	e.logger.Debugw("event published to mqtt",
		"topic", topic,
		"qos", e.qos,
		"size", len(payload),
	)
	return nil
}

func (e *MQTTAlertEmitter) Topic(tenantID domain.TenantID, name domain.EventName) string {
	return fmt.Sprintf("%s/%s/%s", e.prefix, tenantID, name)
}

// Disconnect closes the MQTT connection
func (e *MQTTAlertEmitter) Disconnect() {
	if c, ok := e.client.(mqtt.Client); ok && c.IsConnected() {
		c.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
}

// Stats returns emitter statistics
func (e *MQTTAlertEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.client.IsConnectionOpen(),
		Published: published,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

func (e *MQTTAlertEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
