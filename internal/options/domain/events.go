package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, key string, event DomainEvent) error
}

// OptionCreatedEvent 期权创建事件
type OptionCreatedEvent struct {
	OptionID    protocol.Hash    `json:"option_id"`
	OrderHash   protocol.Hash    `json:"order_hash"`
	Holder      protocol.Address `json:"holder"`
	Seller      protocol.Address `json:"seller"`
	IsCall      bool             `json:"is_call"`
	StrikePrice decimal.Decimal  `json:"strike_price"`
	Premium     decimal.Decimal  `json:"premium"`
	Expiration  uint64           `json:"expiration"`
	Timestamp   time.Time        `json:"timestamp"`
}

func (e *OptionCreatedEvent) EventName() string     { return "options.created" }
func (e *OptionCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// OptionExercisedEvent 期权行权事件
type OptionExercisedEvent struct {
	OptionID     protocol.Hash    `json:"option_id"`
	OrderHash    protocol.Hash    `json:"order_hash"`
	Holder       protocol.Address `json:"holder"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Profit       decimal.Decimal  `json:"profit"`
	Timestamp    time.Time        `json:"timestamp"`
}

func (e *OptionExercisedEvent) EventName() string     { return "options.exercised" }
func (e *OptionExercisedEvent) OccurredAt() time.Time { return e.Timestamp }
