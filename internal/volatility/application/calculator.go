package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// StrategyName 策略名
const StrategyName = "volatility"

// Calculator 波动率自适应金额计算器，实现 protocol.AmountSource
type Calculator struct {
	engine  *domain.Engine
	clock   protocol.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCalculator 创建波动率计算器
func NewCalculator(engine *domain.Engine, clock protocol.Clock, logger *slog.Logger, m *metrics.Metrics) *Calculator {
	return &Calculator{
		engine:  engine,
		clock:   clock,
		logger:  logger.With("strategy", StrategyName),
		metrics: m,
	}
}

var _ protocol.AmountSource = (*Calculator)(nil)

// GetMakingAmount 按请求的 taking 数量折算 making 数量并做波动率调整
func (c *Calculator) GetMakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, takingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer c.observe("making", time.Now(), &err)

	s, paused, err := c.prepare(ctx, order, orderHash, payload, takingAmount, remaining)
	if err != nil || paused {
		return decimal.Zero, err
	}

	base := fixedpoint.MulDiv(takingAmount, order.MakingAmount, order.TakingAmount)
	out = fixedpoint.Min(c.engine.ApplyAdjustment(base, s), remaining)
	c.logger.DebugContext(ctx, "making amount calculated", "order_hash", orderHash, "base", base, "amount", out)
	return out, nil
}

// GetTakingAmount 对 making 数量做波动率调整后按订单价格折算 taking 数量（向上取整）
func (c *Calculator) GetTakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, makingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer c.observe("taking", time.Now(), &err)

	s, paused, err := c.prepare(ctx, order, orderHash, payload, makingAmount, remaining)
	if err != nil || paused {
		return decimal.Zero, err
	}

	adjusted := c.engine.ApplyAdjustment(fixedpoint.Min(makingAmount, remaining), s)
	adjusted = fixedpoint.Min(adjusted, remaining)
	out = fixedpoint.MulDivCeil(adjusted, order.TakingAmount, order.MakingAmount)
	c.logger.DebugContext(ctx, "taking amount calculated", "order_hash", orderHash, "making", adjusted, "amount", out)
	return out, nil
}

// prepare 解码并校验。熔断属于软结果：paused=true 且 err=nil
func (c *Calculator) prepare(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, payload []byte, amounts ...decimal.Decimal) (*domain.Snapshot, bool, error) {
	if err := order.Validate(); err != nil {
		return nil, false, err
	}
	if err := protocol.CheckAmounts(amounts...); err != nil {
		return nil, false, err
	}
	s, err := domain.DecodeSnapshot(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode volatility payload: %w", err)
	}

	if err := s.ValidateBounds(); err != nil {
		return nil, false, err
	}
	if c.engine.ShouldPause(s) {
		if c.metrics != nil {
			c.metrics.VolatilityPauses.Inc()
		}
		c.logger.WarnContext(ctx, "execution paused by emergency threshold",
			"order_hash", orderHash, "current", s.CurrentVolatility, "emergency", s.EmergencyThreshold)
		return s, true, nil
	}

	if err := c.engine.Validate(s, c.clock.Now()); err != nil {
		return nil, false, err
	}
	if c.metrics != nil {
		c.metrics.RiskScore.Observe(float64(c.engine.RiskScore(s)))
	}
	return s, false, nil
}

// Assess 以当前时刻评估快照
func (c *Calculator) Assess(s *domain.Snapshot) *domain.Assessment {
	a := c.engine.Assess(s, c.clock.Now())
	if c.metrics != nil && a.Valid() {
		c.metrics.RiskScore.Observe(float64(a.RiskScore))
	}
	return a
}

func (c *Calculator) observe(side string, start time.Time, err *error) {
	c.metrics.ObserveStrategy(StrategyName, side, time.Since(start).Seconds(), *err)
}
