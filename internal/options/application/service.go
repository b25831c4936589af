package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// Config 期权服务配置
type Config struct {
	DefaultImpliedVolatility uint64 // 基点
	// DefaultExpiration 未指定到期时间时使用的期限（秒），0 表示必须显式指定
	DefaultExpiration uint64
}

// CreateCommand 创建期权命令
type CreateCommand struct {
	Order       *protocol.Order
	OrderHash   protocol.Hash
	Holder      protocol.Address
	StrikePrice decimal.Decimal
	Expiration  uint64
	Premium     decimal.Decimal
}

// ExerciseResult 行权结果
type ExerciseResult struct {
	OptionID     protocol.Hash   `json:"option_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Profit       decimal.Decimal `json:"profit"`
	ExercisedAt  uint64          `json:"exercised_at"`
}

// OptionService 期权生命周期服务，账本是唯一的共享可变状态
type OptionService struct {
	repo      domain.Repository
	publisher domain.EventPublisher
	clock     protocol.Clock
	config    Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewOptionService 创建期权服务
func NewOptionService(repo domain.Repository, publisher domain.EventPublisher, clock protocol.Clock, cfg Config, logger *slog.Logger, m *metrics.Metrics) *OptionService {
	return &OptionService{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		config:    cfg,
		logger:    logger.With("module", "options"),
		metrics:   m,
	}
}

// CreateCallOption 创建看涨期权
func (s *OptionService) CreateCallOption(ctx context.Context, cmd CreateCommand) (protocol.Hash, error) {
	return s.createOption(ctx, cmd, true)
}

// CreatePutOption 创建看跌期权
func (s *OptionService) CreatePutOption(ctx context.Context, cmd CreateCommand) (protocol.Hash, error) {
	return s.createOption(ctx, cmd, false)
}

func (s *OptionService) createOption(ctx context.Context, cmd CreateCommand, isCall bool) (protocol.Hash, error) {
	if err := cmd.Order.Validate(); err != nil {
		return protocol.Hash{}, err
	}

	now := s.clock.Now()
	if cmd.Expiration == 0 && s.config.DefaultExpiration > 0 {
		cmd.Expiration = now + s.config.DefaultExpiration
	}
	opt, err := domain.NewOption(domain.CreateParams{
		OrderHash:         cmd.OrderHash,
		Holder:            cmd.Holder,
		Seller:            cmd.Order.Maker,
		StrikePrice:       cmd.StrikePrice,
		Expiration:        cmd.Expiration,
		Premium:           cmd.Premium,
		IsCall:            isCall,
		ImpliedVolatility: s.config.DefaultImpliedVolatility,
	}, now)
	if err != nil {
		return protocol.Hash{}, err
	}

	if err := s.repo.Create(ctx, opt); err != nil {
		return protocol.Hash{}, err
	}
	if s.metrics != nil {
		s.metrics.OptionsCreated.WithLabelValues(opt.Type()).Inc()
	}
	s.logger.InfoContext(ctx, "option created", "option_id", opt.ID, "type", opt.Type(),
		"holder", opt.OptionHolder, "strike", opt.StrikePrice, "expiration", opt.Expiration)

	s.publish(ctx, opt.ID, &domain.OptionCreatedEvent{
		OptionID:    opt.ID,
		OrderHash:   opt.UnderlyingOrderHash,
		Holder:      opt.OptionHolder,
		Seller:      opt.OptionSeller,
		IsCall:      opt.IsCall,
		StrikePrice: opt.StrikePrice,
		Premium:     opt.PremiumPaid,
		Expiration:  opt.Expiration,
		Timestamp:   time.Unix(int64(now), 0),
	})
	return opt.ID, nil
}

// ExerciseOption 行权。order 必须是期权标的订单，前置检查通过后由账本原子置位，竞争失败者得到 ErrOptionAlreadyExercised
func (s *OptionService) ExerciseOption(ctx context.Context, id protocol.Hash, order *protocol.Order, orderHash protocol.Hash, currentPrice decimal.Decimal, caller protocol.Address) (res *ExerciseResult, err error) {
	defer func() {
		if err != nil {
			s.rejected(ctx, id, err)
		}
	}()

	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := protocol.CheckAmounts(currentPrice); err != nil {
		return nil, err
	}

	opt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := opt.CheckExercise(caller, now); err != nil {
		return nil, err
	}
	if orderHash != opt.UnderlyingOrderHash {
		return nil, domain.ErrOptionDataMismatch
	}
	if !opt.IsProfitable(currentPrice) {
		return nil, domain.ErrOptionNotProfitable
	}
	if err := s.repo.MarkExercised(ctx, id); err != nil {
		return nil, err
	}

	res = &ExerciseResult{
		OptionID:     id,
		CurrentPrice: currentPrice,
		Profit:       opt.RealizedProfit(currentPrice, order.MakingAmount),
		ExercisedAt:  now,
	}
	if s.metrics != nil {
		s.metrics.OptionsExercised.Inc()
	}
	s.logger.InfoContext(ctx, "option exercised", "option_id", id, "price", currentPrice, "profit", res.Profit)

	s.publish(ctx, id, &domain.OptionExercisedEvent{
		OptionID:     id,
		OrderHash:    opt.UnderlyingOrderHash,
		Holder:       opt.OptionHolder,
		CurrentPrice: currentPrice,
		Profit:       res.Profit,
		Timestamp:    time.Unix(int64(now), 0),
	})
	return res, nil
}

// CalculateOptionPremium 计算溢价报价
func (s *OptionService) CalculateOptionPremium(order *protocol.Order, currentPrice decimal.Decimal, timeToExpiration, volatility uint64, isCall bool) (*domain.PremiumQuote, error) {
	return domain.CalculatePremium(order, currentPrice, timeToExpiration, volatility, isCall)
}

// GetOption 查询期权
func (s *OptionService) GetOption(ctx context.Context, id protocol.Hash) (*domain.Option, error) {
	return s.repo.Get(ctx, id)
}

// GetOptionWithStatus 查询期权及当前状态
func (s *OptionService) GetOptionWithStatus(ctx context.Context, id protocol.Hash) (*domain.Status, error) {
	opt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return opt.StatusAt(s.clock.Now()), nil
}

// ListOptionsByOrder 查询订单下的全部期权
func (s *OptionService) ListOptionsByOrder(ctx context.Context, orderHash protocol.Hash) ([]*domain.Option, error) {
	return s.repo.ListByOrder(ctx, orderHash)
}

// Greeks 计算希腊值
func (s *OptionService) Greeks(ctx context.Context, id protocol.Hash, currentPrice decimal.Decimal) (*domain.Greeks, error) {
	if err := protocol.CheckAmounts(currentPrice); err != nil {
		return nil, err
	}
	opt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return opt.GreeksAt(currentPrice, s.clock.Now()), nil
}

// publish 事件在账本写入之后发布，发布失败不回滚账本
func (s *OptionService) publish(ctx context.Context, id protocol.Hash, event domain.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, id.Hex(), event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish option event", "event", event.EventName(), "option_id", id, "error", err)
	}
}

func (s *OptionService) rejected(ctx context.Context, id protocol.Hash, err error) {
	code := "UNKNOWN"
	var perr *protocol.Error
	if errors.As(err, &perr) {
		code = perr.Code
	}
	if s.metrics != nil {
		s.metrics.ExerciseRejected.WithLabelValues(code).Inc()
	}
	s.logger.InfoContext(ctx, "option exercise rejected", "option_id", id, "reason", fmt.Sprint(err))
}
