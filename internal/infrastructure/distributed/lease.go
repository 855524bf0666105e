package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Acquires a free lease or extends one already held by ARGV[1].
var acquireScript = redis.NewScript(`
	local v = redis.call("get", KEYS[1])
	if v == false then
		redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
		return 1
	end
	if v == ARGV[1] then
		redis.call("pexpire", KEYS[1], ARGV[2])
		return 1
	end
	return 0
`)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

type leaseStore interface {
	acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, owner string) error
}

type redisLeaseStore struct {
	client *redis.Client
}

func (s redisLeaseStore) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, s.client, []string{key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return n == 1, nil
}

func (s redisLeaseStore) release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}

// LeasedSink forwards a tenant's events to the wrapped sink only while this
// instance holds the tenant's lease, so several processes watching the same
// barn publish each alert once. When Redis cannot be reached it forwards
// anyway: a duplicate alert beats a lost one.
type LeasedSink struct {
	inner  ports.EventSink
	store  leaseStore
	prefix string
	owner  string
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	mu      sync.Mutex
	renewed map[domain.TenantID]time.Time
}

// NewLeasedSink guards inner with leases stored under <prefix><tenant>.
func NewLeasedSink(client *redis.Client, inner ports.EventSink, prefix string, ttl time.Duration, logger *zap.SugaredLogger) *LeasedSink {
	return newLeasedSink(redisLeaseStore{client: client}, inner, prefix, ttl, logger)
}

func newLeasedSink(store leaseStore, inner ports.EventSink, prefix string, ttl time.Duration, logger *zap.SugaredLogger) *LeasedSink {
	return &LeasedSink{
		inner:   inner,
		store:   store,
		prefix:  prefix,
		owner:   newOwnerID(),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		renewed: make(map[domain.TenantID]time.Time),
	}
}

func newOwnerID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *LeasedSink) Publish(ctx context.Context, tenantID domain.TenantID, event domain.Event) error {
	if !s.holds(ctx, tenantID) {
		return nil
	}
	return s.inner.Publish(ctx, tenantID, event)
}

// holds renews the lease once half its TTL has passed.
func (s *LeasedSink) holds(ctx context.Context, tenantID domain.TenantID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if at, ok := s.renewed[tenantID]; ok && now.Sub(at) < s.ttl/2 {
		return true
	}

	acquired, err := s.store.acquire(ctx, s.prefix+string(tenantID), s.owner, s.ttl)
	if err != nil {
		s.logger.Warnw("lease check failed, forwarding event",
			"tenant_id", tenantID,
			"error", err,
		)
		return true
	}
	if !acquired {
		if _, ok := s.renewed[tenantID]; ok {
			s.logger.Infow("lost event forwarding lease", "tenant_id", tenantID)
		}
		delete(s.renewed, tenantID)
		return false
	}
	if _, ok := s.renewed[tenantID]; !ok {
		s.logger.Infow("acquired event forwarding lease", "tenant_id", tenantID)
	}
	s.renewed[tenantID] = now
	return true
}

// Release gives up every lease this instance holds.
func (s *LeasedSink) Release(ctx context.Context) {
	s.mu.Lock()
	tenants := make([]domain.TenantID, 0, len(s.renewed))
	for id := range s.renewed {
		tenants = append(tenants, id)
	}
	s.renewed = make(map[domain.TenantID]time.Time)
	s.mu.Unlock()

	for _, id := range tenants {
		if err := s.store.release(ctx, s.prefix+string(id), s.owner); err != nil {
			s.logger.Warnw("failed to release lease", "tenant_id", id, "error", err)
		}
	}
}

var _ ports.EventSink = (*LeasedSink)(nil)
