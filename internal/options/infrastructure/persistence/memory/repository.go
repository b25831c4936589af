// Package memory 进程内期权账本，单实例部署与测试使用
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

type OptionRepo struct {
	mu      sync.RWMutex
	options map[protocol.Hash]*domain.Option
}

func NewOptionRepo() *OptionRepo {
	return &OptionRepo{options: make(map[protocol.Hash]*domain.Option)}
}

var _ domain.Repository = (*OptionRepo)(nil)

func (r *OptionRepo) Create(ctx context.Context, o *domain.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.options[o.ID]; ok {
		return domain.ErrOptionAlreadyExists
	}
	cp := *o
	r.options[o.ID] = &cp
	return nil
}

func (r *OptionRepo) Get(ctx context.Context, id protocol.Hash) (*domain.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.options[id]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	cp := *o
	return &cp, nil
}

// MarkExercised 在写锁内完成检查与置位
func (r *OptionRepo) MarkExercised(ctx context.Context, id protocol.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.options[id]
	if !ok {
		return domain.ErrOptionNotFound
	}
	if o.IsExercised {
		return domain.ErrOptionAlreadyExercised
	}
	o.IsExercised = true
	return nil
}

func (r *OptionRepo) ListByOrder(ctx context.Context, orderHash protocol.Hash) ([]*domain.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Option
	for _, o := range r.options {
		if o.UnderlyingOrderHash == orderHash {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime < out[j].CreationTime })
	return out, nil
}
