package services

import (
	"context"
	"sort"
	"sync"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/validation"

	"go.uber.org/zap"
)

// BridgeBuilder creates the camera bridge of one tenant.
type BridgeBuilder func(ctx context.Context, tenantID domain.TenantID) (ports.CameraBridge, error)

type pendingBridge struct {
	done   chan struct{}
	bridge ports.CameraBridge
	err    error
}

// TenantRegistry keeps one CameraBridge per tenant, created on first use.
// Concurrent first requests for a tenant share a single construction.
type TenantRegistry struct {
	build      BridgeBuilder
	maxTenants int
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	bridges map[domain.TenantID]*pendingBridge
	closed  bool
}

func NewTenantRegistry(build BridgeBuilder, maxTenants int, logger *zap.SugaredLogger) *TenantRegistry {
	return &TenantRegistry{
		build:      build,
		maxTenants: maxTenants,
		logger:     logger,
		bridges:    make(map[domain.TenantID]*pendingBridge),
	}
}

func (r *TenantRegistry) Get(ctx context.Context, tenantID domain.TenantID) (ports.CameraBridge, error) {
	if err := validation.ValidateCameraID(string(tenantID)); err != nil {
		return nil, apperrors.NewInvalidInputError("invalid tenant ID")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperrors.NewBridgeUnavailableError("camera bridge service has been shut down", domain.ErrServiceStopped)
	}
	if p, ok := r.bridges[tenantID]; ok {
		r.mu.Unlock()
		return p.wait(ctx)
	}
	if r.maxTenants > 0 && len(r.bridges) >= r.maxTenants {
		r.mu.Unlock()
		return nil, apperrors.NewCapacityExceededError("too many tenants are connected")
	}
	p := &pendingBridge{done: make(chan struct{})}
	r.bridges[tenantID] = p
	r.mu.Unlock()

	p.bridge, p.err = r.build(ctx, tenantID)
	close(p.done)

	if p.err != nil {
		r.mu.Lock()
		if r.bridges[tenantID] == p {
			delete(r.bridges, tenantID)
		}
		r.mu.Unlock()
		r.logger.Warnw("failed to create camera bridge", "tenant_id", tenantID, "error", p.err)
		return nil, p.err
	}

	r.logger.Infow("camera bridge created", "tenant_id", tenantID)
	return p.bridge, nil
}

func (p *pendingBridge) wait(ctx context.Context) (ports.CameraBridge, error) {
	select {
	case <-p.done:
		return p.bridge, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tenants lists tenants with a ready bridge, sorted.
func (r *TenantRegistry) Tenants() []domain.TenantID {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenants := make([]domain.TenantID, 0, len(r.bridges))
	for id, p := range r.bridges {
		select {
		case <-p.done:
			if p.err == nil {
				tenants = append(tenants, id)
			}
		default:
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i] < tenants[j] })
	return tenants
}

// Remove destroys a tenant's bridge. It reports whether one existed.
func (r *TenantRegistry) Remove(tenantID domain.TenantID) bool {
	r.mu.Lock()
	p, ok := r.bridges[tenantID]
	delete(r.bridges, tenantID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	<-p.done
	if p.bridge != nil {
		p.bridge.Destroy()
	}
	return p.err == nil
}

// DestroyAll destroys every bridge and refuses new tenants afterwards.
func (r *TenantRegistry) DestroyAll() {
	r.mu.Lock()
	r.closed = true
	pending := r.bridges
	r.bridges = make(map[domain.TenantID]*pendingBridge)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for id, p := range pending {
		wg.Add(1)
		go func(id domain.TenantID, p *pendingBridge) {
			defer wg.Done()
			<-p.done
			if p.bridge != nil {
				p.bridge.Destroy()
				r.logger.Infow("camera bridge destroyed", "tenant_id", id)
			}
		}(id, p)
	}
	wg.Wait()
}

var _ ports.BridgeProvider = (*TenantRegistry)(nil)
