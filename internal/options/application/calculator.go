package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// StrategyName 策略名
const StrategyName = "options"

// Calculator 已行权期权按行权价成交，实现 protocol.AmountSource。
// 负载中的期权仅用于定位，行权状态以账本为准。
type Calculator struct {
	repo    domain.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCalculator 创建期权计算器
func NewCalculator(repo domain.Repository, logger *slog.Logger, m *metrics.Metrics) *Calculator {
	return &Calculator{repo: repo, logger: logger.With("strategy", StrategyName), metrics: m}
}

var _ protocol.AmountSource = (*Calculator)(nil)

// GetMakingAmount making = min(taking*1e18/strike, remaining)
func (c *Calculator) GetMakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, takingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer c.observe("making", time.Now(), &err)

	opt, err := c.resolve(ctx, order, orderHash, taker, payload, takingAmount, remaining)
	if err != nil {
		return decimal.Zero, err
	}
	making := fixedpoint.MulDiv(takingAmount, protocol.PricePrecision, opt.StrikePrice)
	return fixedpoint.Min(making, remaining), nil
}

// GetTakingAmount taking = ceil(min(making, remaining)*strike/1e18)
func (c *Calculator) GetTakingAmount(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, makingAmount, remaining decimal.Decimal, payload []byte) (out decimal.Decimal, err error) {
	defer c.observe("taking", time.Now(), &err)

	opt, err := c.resolve(ctx, order, orderHash, taker, payload, makingAmount, remaining)
	if err != nil {
		return decimal.Zero, err
	}
	making := fixedpoint.Min(makingAmount, remaining)
	return fixedpoint.MulDivCeil(making, opt.StrikePrice, protocol.PricePrecision), nil
}

func (c *Calculator) resolve(ctx context.Context, order *protocol.Order, orderHash protocol.Hash, taker protocol.Address, payload []byte, amounts ...decimal.Decimal) (*domain.Option, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := protocol.CheckAmounts(amounts...); err != nil {
		return nil, err
	}
	claimed, err := domain.DecodeOption(payload)
	if err != nil {
		return nil, fmt.Errorf("decode option payload: %w", err)
	}

	ledger, err := c.repo.Get(ctx, claimed.ID)
	if err != nil {
		return nil, err
	}
	if !ledger.SameTerms(claimed) || ledger.UnderlyingOrderHash != orderHash {
		c.logger.WarnContext(ctx, "option payload mismatch", "option_id", claimed.ID, "order_hash", orderHash)
		return nil, domain.ErrOptionDataMismatch
	}
	if taker != ledger.OptionHolder {
		return nil, domain.ErrNotOptionHolder
	}
	if !ledger.IsExercised {
		return nil, domain.ErrOptionNotExercised
	}
	return ledger, nil
}

func (c *Calculator) observe(side string, start time.Time, err *error) {
	c.metrics.ObserveStrategy(StrategyName, side, time.Since(start).Seconds(), *err)
}
