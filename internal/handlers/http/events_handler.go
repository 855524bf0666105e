package http

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/internal/infrastructure/middleware"
	"onebarn/pkg/errors"
	"onebarn/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientQueueSize = 64
	writeTimeout    = 10 * time.Second
)

// eventClient is one dashboard tab listening to its tenant's events.
type eventClient struct {
	tenantID domain.TenantID
	send     chan *domain.EventEnvelope
	dropped  atomic.Int64
}

// EventsHandler pushes bridge events to dashboards over WebSocket. Events come
// from the local tenant bridge and, via DeliverRemote, from other instances.
type EventsHandler struct {
	bridges  ports.BridgeProvider
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[domain.TenantID]map[*eventClient]struct{}

	pingInterval time.Duration
	readTimeout  time.Duration

	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewEventsHandler(
	bridges ports.BridgeProvider,
	allowedOrigins []string,
	pingInterval time.Duration,
	logger *zap.SugaredLogger,
) *EventsHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &EventsHandler{
		bridges: bridges,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:      make(map[domain.TenantID]map[*eventClient]struct{}),
		pingInterval: pingInterval,
		readTimeout:  2 * pingInterval,
		now:          time.Now,
		logger:       logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *EventsHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.HandleEvents)
}

func (h *EventsHandler) HandleEvents(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("tenant is not known"))
		return
	}
	bridge, err := h.bridges.Get(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	client := &eventClient{
		tenantID: tenantID,
		send:     make(chan *domain.EventEnvelope, clientQueueSize),
	}

	// Subscribe before the handshake completes so nothing emitted after the
	// dashboard sees the upgrade is missed.
	subs := make(map[domain.EventName]ports.SubscriptionID, len(domain.AllEvents))
	for _, name := range domain.AllEvents {
		subs[name] = bridge.On(name, func(event domain.Event) {
			env, err := domain.NewEventEnvelope(utils.GenerateEventID(), tenantID, event, h.now())
			if err != nil {
				h.logger.Warnw("failed to encode event", "event", event.Name(), "error", err)
				return
			}
			h.enqueue(client, env)
		})
	}
	h.register(client)
	defer func() {
		for name, id := range subs {
			bridge.Off(name, id)
		}
		h.unregister(client)
	}()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "tenant_id", tenantID, "error", err)
		return
	}
	defer conn.Close()

	h.logger.Infow("dashboard connected", "tenant_id", tenantID)
	h.serve(conn, client)
	h.logger.Infow("dashboard disconnected", "tenant_id", tenantID)
}

func (h *EventsHandler) serve(conn *websocket.Conn, client *eventClient) {
	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	// Dashboards do not send anything; reading only drives control frames.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	pingTicker := time.NewTicker(h.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case env, ok := <-client.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				h.logger.Infow("error writing event", "tenant_id", client.tenantID, "error", err)
				return
			}

		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Infow("error sending ping", "tenant_id", client.tenantID, "error", err)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("error reading from dashboard", "tenant_id", client.tenantID, "error", err)
			}
			return
		}
	}
}

// DeliverRemote pushes an envelope mirrored from another instance to the
// tenant's dashboards connected here.
func (h *EventsHandler) DeliverRemote(env *domain.EventEnvelope) error {
	if env == nil || env.TenantID == "" {
		return errors.NewInvalidInputError("envelope has no tenant")
	}
	if !env.Event.Valid() {
		return errors.NewInvalidInputError("unknown event " + string(env.Event))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[env.TenantID] {
		h.enqueueLocked(client, env)
	}
	return nil
}

// Connections returns the number of dashboards listening for tenantID.
func (h *EventsHandler) Connections(tenantID domain.TenantID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

// Close disconnects every dashboard.
func (h *EventsHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tenantID, set := range h.clients {
		for client := range set {
			close(client.send)
		}
		delete(h.clients, tenantID)
	}
}

func (h *EventsHandler) register(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.tenantID]
	if !ok {
		set = make(map[*eventClient]struct{})
		h.clients[client.tenantID] = set
	}
	set[client] = struct{}{}
}

func (h *EventsHandler) unregister(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.tenantID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.tenantID)
	}
}

func (h *EventsHandler) enqueue(client *eventClient, env *domain.EventEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.tenantID][client]; !ok {
		return
	}
	h.enqueueLocked(client, env)
}

// enqueueLocked requires h.mu held; a client that stopped reading loses events
// rather than stalling the bridge.
func (h *EventsHandler) enqueueLocked(client *eventClient, env *domain.EventEnvelope) {
	select {
	case client.send <- env:
	default:
		dropped := client.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			h.logger.Warnw("dashboard is slow, dropping events",
				"tenant_id", client.tenantID,
				"dropped", dropped,
			)
		}
	}
}

var _ ports.WebSocketHandler = (*EventsHandler)(nil)
