// Package cache 期权账本的 Redis 读穿缓存装饰器
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/cache"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

const keyPrefix = "vectorplus:option:"

// CachedRepo 读穿缓存。
// 未命中回填只用 SetNX，不会覆盖行权后写入的条目；行权后用已行权状态覆盖缓存。
// 覆盖失败时该 ID 在两倍 ttl 内绕过缓存直读账本，保证行权标记不回退
type CachedRepo struct {
	inner   domain.Repository
	cache   cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	bypass map[protocol.Hash]time.Time
	now    func() time.Time
}

func NewCachedRepo(inner domain.Repository, c cache.Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedRepo {
	return &CachedRepo{
		inner:   inner,
		cache:   c,
		ttl:     ttl,
		logger:  logger.With("component", "option_cache"),
		metrics: m,
		bypass:  make(map[protocol.Hash]time.Time),
		now:     time.Now,
	}
}

var _ domain.Repository = (*CachedRepo)(nil)

func key(id protocol.Hash) string { return keyPrefix + id.Hex() }

func (r *CachedRepo) Create(ctx context.Context, o *domain.Option) error {
	if err := r.inner.Create(ctx, o); err != nil {
		return err
	}
	r.add(ctx, o)
	return nil
}

func (r *CachedRepo) Get(ctx context.Context, id protocol.Hash) (*domain.Option, error) {
	if r.bypassed(id) {
		r.record("get", "bypass")
		return r.inner.Get(ctx, id)
	}

	var o domain.Option
	hit, err := cache.GetJSON(ctx, r.cache, key(id), &o)
	switch {
	case err != nil:
		r.record("get", "error")
		r.logger.WarnContext(ctx, "option cache read failed", "option_id", id, "error", err)
	case hit:
		r.record("get", "hit")
		return &o, nil
	default:
		r.record("get", "miss")
	}

	loaded, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded.IsExercised {
		r.overwrite(ctx, loaded)
	} else {
		r.add(ctx, loaded)
	}
	return loaded, nil
}

// MarkExercised 先更新账本，再以已行权状态覆盖缓存
func (r *CachedRepo) MarkExercised(ctx context.Context, id protocol.Hash) error {
	if err := r.inner.MarkExercised(ctx, id); err != nil {
		return err
	}
	exercised, err := r.inner.Get(ctx, id)
	if err == nil && r.overwrite(ctx, exercised) {
		return nil
	}

	r.markBypass(id)
	if err := r.cache.Delete(ctx, key(id)); err != nil {
		r.record("delete", "error")
		r.logger.WarnContext(ctx, "option cache invalidation failed", "option_id", id, "error", err)
	}
	return nil
}

func (r *CachedRepo) ListByOrder(ctx context.Context, orderHash protocol.Hash) ([]*domain.Option, error) {
	return r.inner.ListByOrder(ctx, orderHash)
}

// add 仅在缓存中不存在时写入
func (r *CachedRepo) add(ctx context.Context, o *domain.Option) {
	added, err := cache.AddJSON(ctx, r.cache, key(o.ID), o, r.ttl)
	switch {
	case err != nil:
		r.record("set", "error")
		r.logger.WarnContext(ctx, "option cache write failed", "option_id", o.ID, "error", err)
	case added:
		r.record("set", "ok")
	default:
		r.record("set", "skipped")
	}
}

func (r *CachedRepo) overwrite(ctx context.Context, o *domain.Option) bool {
	if err := cache.SetJSON(ctx, r.cache, key(o.ID), o, r.ttl); err != nil {
		r.record("set", "error")
		r.logger.WarnContext(ctx, "option cache write failed", "option_id", o.ID, "error", err)
		return false
	}
	r.record("set", "ok")
	return true
}

func (r *CachedRepo) markBypass(id protocol.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bypass[id] = r.now().Add(2 * r.ttl)
}

func (r *CachedRepo) bypassed(id protocol.Hash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.bypass[id]
	if !ok {
		return false
	}
	if r.now().After(until) {
		delete(r.bypass, id)
		return false
	}
	return true
}

func (r *CachedRepo) record(op, result string) {
	if r.metrics != nil {
		r.metrics.CacheOps.WithLabelValues(op, result).Inc()
	}
}
