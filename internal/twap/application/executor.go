package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/internal/twap/domain"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// StrategyName 策略名
const StrategyName = "twap"

// Executor TWAP 金额计算器，实现 protocol.AmountSource。
// 返回的切片上限为当前时刻的推荐量；过早或熔断时返回 0。
type Executor struct {
	engine  *domain.Engine
	clock   protocol.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewExecutor 创建 TWAP 计算器
func NewExecutor(engine *domain.Engine, clock protocol.Clock, logger *slog.Logger, m *metrics.Metrics) *Executor {
	return &Executor{
		engine:  engine,
		clock:   clock,
		logger:  logger.With("strategy", StrategyName),
		metrics: m,
	}
}

var _ protocol.AmountSource = (*Executor)(nil)

// GetMakingAmount 请求的 taking 折算为 making 后与推荐切片取小
func (x *Executor) GetMakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, takingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer x.observe("making", time.Now(), &err)

	slice, err := x.slice(ctx, order, orderHash, payload, remaining, takingAmount)
	if err != nil || slice.IsZero() {
		return decimal.Zero, err
	}
	requested := fixedpoint.MulDiv(takingAmount, order.MakingAmount, order.TakingAmount)
	return fixedpoint.Min(slice, requested), nil
}

// GetTakingAmount 请求的 making 与推荐切片取小后按订单价格折算 taking（向上取整）
func (x *Executor) GetTakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, makingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer x.observe("taking", time.Now(), &err)

	slice, err := x.slice(ctx, order, orderHash, payload, remaining, makingAmount)
	if err != nil || slice.IsZero() {
		return decimal.Zero, err
	}
	making := fixedpoint.Min(slice, makingAmount)
	return fixedpoint.MulDivCeil(making, order.TakingAmount, order.MakingAmount), nil
}

// State 返回当前时刻的完整执行状态，供调度方轮询
func (x *Executor) State(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, remaining decimal.Decimal, payload []byte) (*domain.ExecutionState, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	p, err := domain.DecodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("decode twap payload: %w", err)
	}
	return x.StateOf(ctx, order, orderHash, remaining, p)
}

// StateOf 使用已解码的负载计算执行状态
func (x *Executor) StateOf(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, remaining decimal.Decimal, p *domain.Payload) (*domain.ExecutionState, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := protocol.CheckAmounts(remaining); err != nil {
		return nil, err
	}
	return x.engine.CalculateExecution(order, orderHash, &p.Schedule, &p.Snapshot, remaining, x.clock.Now())
}

// Simulate 生成准点执行计划
func (x *Executor) Simulate(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, p *domain.Payload) (*domain.Simulation, error) {
	sim, err := x.engine.Simulate(order, orderHash, &p.Schedule, &p.Snapshot)
	if err != nil {
		return nil, err
	}
	x.logger.InfoContext(ctx, "twap simulated", "order_hash", orderHash, "steps", len(sim.Steps),
		"total", sim.TotalAmount, "paused", sim.Paused)
	return sim, nil
}

func (x *Executor) slice(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, payload []byte, remaining, requested decimal.Decimal) (decimal.Decimal, error) {
	if err := protocol.CheckAmounts(requested); err != nil {
		return decimal.Zero, err
	}
	state, err := x.State(ctx, order, orderHash, remaining, payload)
	if err != nil {
		return decimal.Zero, err
	}

	switch {
	case state.IsPaused:
		if x.metrics != nil {
			x.metrics.VolatilityPauses.Inc()
		}
		x.logger.WarnContext(ctx, "twap execution paused", "order_hash", orderHash)
		return decimal.Zero, nil
	case !state.CanExecute:
		x.logger.DebugContext(ctx, "twap interval not reached", "order_hash", orderHash, "next_execution_time", state.NextExecutionTime)
		return decimal.Zero, nil
	}

	x.logger.DebugContext(ctx, "twap slice calculated", "order_hash", orderHash,
		"amount", state.RecommendedAmount, "progress_bps", state.ProgressPercentage)
	return state.RecommendedAmount, nil
}

func (x *Executor) observe(side string, start time.Time, err *error) {
	x.metrics.ObserveStrategy(StrategyName, side, time.Since(start).Seconds(), *err)
}
