package domain

import (
	"context"

	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// Repository 期权账本。行权标记必须是原子的比较并交换
type Repository interface {
	// Create 写入新期权，ID 已存在时返回 ErrOptionAlreadyExists
	Create(ctx context.Context, o *Option) error
	// Get 不存在时返回 ErrOptionNotFound
	Get(ctx context.Context, id protocol.Hash) (*Option, error)
	// MarkExercised 仅当未行权时置位；已行权返回 ErrOptionAlreadyExercised
	MarkExercised(ctx context.Context, id protocol.Hash) error
	ListByOrder(ctx context.Context, orderHash protocol.Hash) ([]*Option, error)
}
