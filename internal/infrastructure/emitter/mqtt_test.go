package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"onebarn/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	open   bool
	err    error
	calls  []publishCall
	tokens func() mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	if p.tokens != nil {
		return p.tokens()
	}
	return completedToken(p.err)
}

func (p *fakePublisher) IsConnectionOpen() bool { return p.open }

func TestMQTTAlertEmitter_PublishesAlertOnTenantTopic(t *testing.T) {
	pub := &fakePublisher{open: true}
	e := newAlertEmitter(pub, "onebarn", 1, zap.NewNop().Sugar())

	alert := domain.Alert{CameraID: "stall-a", Severity: domain.SeverityCritical, Message: "horse down"}
	require.NoError(t, e.Publish(context.Background(), "ranch-1", alert))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "onebarn/ranch-1/alert", pub.calls[0].topic)
	assert.Equal(t, byte(1), pub.calls[0].qos)

	var env domain.EventEnvelope
	require.NoError(t, json.Unmarshal(pub.calls[0].payload, &env))
	assert.Equal(t, domain.EventAlert, env.Event)
	assert.Equal(t, uint64(1), e.Stats().Published["onebarn/ranch-1/alert"])
}

func TestMQTTAlertEmitter_DropsHighVolumeEvents(t *testing.T) {
	pub := &fakePublisher{open: true}
	e := newAlertEmitter(pub, "onebarn", 0, zap.NewNop().Sugar())

	require.NoError(t, e.Publish(context.Background(), "t", domain.StreamMetricsSampled{StreamID: "s"}))
	assert.Empty(t, pub.calls)
}

func TestMQTTAlertEmitter_NotConnected(t *testing.T) {
	pub := &fakePublisher{open: false}
	e := newAlertEmitter(pub, "onebarn", 0, zap.NewNop().Sugar())

	err := e.Publish(context.Background(), "t", domain.BridgeConnected{})
	assert.Error(t, err)
	assert.Empty(t, pub.calls)
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestMQTTAlertEmitter_PublishFailure(t *testing.T) {
	pub := &fakePublisher{open: true, err: errors.New("broker rejected")}
	e := newAlertEmitter(pub, "onebarn", 0, zap.NewNop().Sugar())

	err := e.Publish(context.Background(), "t", domain.Error{Operation: "snapshot"})
	assert.ErrorContains(t, err, "broker rejected")
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestMQTTAlertEmitter_ContextCancelledWhileWaiting(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}
	pub := &fakePublisher{open: true, tokens: func() mqtt.Token { return pending }}
	e := newAlertEmitter(pub, "onebarn", 0, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Publish(ctx, "t", domain.Alert{})
	assert.ErrorIs(t, err, context.Canceled)
}
