package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventMirror copies tenant events to Redis pub/sub so several dashboard
// processes can observe one bridge, and relays events published by the others.
type EventMirror struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewEventMirror creates a mirror publishing on <channel>:<tenant>
func NewEventMirror(
	client *redis.Client,
	instanceID string,
	channel string,
	logger *zap.SugaredLogger,
) *EventMirror {
	return &EventMirror{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
		now:        time.Now,
	}
}

// Publish publishes an event to the tenant channel
func (m *EventMirror) Publish(ctx context.Context, tenantID domain.TenantID, event domain.Event) error {
	data, err := m.encode(tenantID, event)
	if err != nil {
		return err
	}

	if err := m.client.Publish(ctx, m.channelFor(tenantID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	m.logger.Debugw("mirrored event",
		"event", event.Name(),
		"tenant_id", tenantID,
	)

	return nil
}

// Subscribe relays events published by other instances to handler until ctx
// is cancelled.
func (m *EventMirror) Subscribe(ctx context.Context, handler func(*domain.EventEnvelope) error) error {
	pubsub := m.client.PSubscribe(ctx, m.channel+":*")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m.handleMessage(msg.Payload, handler)
		}
	}
}

func (m *EventMirror) handleMessage(payload string, handler func(*domain.EventEnvelope) error) {
	var env domain.EventEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		m.logger.Warnw("failed to unmarshal event",
			"error", err,
			"payload", utils.TruncateString(payload, 256),
		)
		return
	}

	// Skip events from this instance
	if env.InstanceID == m.instanceID {
		return
	}

	if err := handler(&env); err != nil {
		m.logger.Warnw("error handling mirrored event",
			"event", env.Event,
			"tenant_id", env.TenantID,
			"error", err,
		)
	}
}

func (m *EventMirror) encode(tenantID domain.TenantID, event domain.Event) ([]byte, error) {
	env, err := domain.NewEventEnvelope(utils.GenerateEventID(), tenantID, event, m.now())
	if err != nil {
		return nil, err
	}
	env.InstanceID = m.instanceID

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

func (m *EventMirror) channelFor(tenantID domain.TenantID) string {
	return m.channel + ":" + string(tenantID)
}
