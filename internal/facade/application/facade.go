// Package application 策略门面：按名称路由到三个金额计算器，并提供批量与元数据查询
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	optapp "github.com/wyfcoding/vectorplus/internal/options/application"
	twapapp "github.com/wyfcoding/vectorplus/internal/twap/application"
	volapp "github.com/wyfcoding/vectorplus/internal/volatility/application"
	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// ErrUnknownStrategy 未知策略名
var ErrUnknownStrategy = protocol.NewError(protocol.ClassNotFound, "UNKNOWN_STRATEGY", "strategy is not registered")

// CombinedStrategy 组合策略的燃料估算键
const CombinedStrategy = "combined"

// DefaultGasEstimates 未配置时的燃料估算
var DefaultGasEstimates = map[string]uint64{
	volapp.StrategyName:  45000,
	twapapp.StrategyName: 65000,
	optapp.StrategyName:  85000,
	CombinedStrategy:     110000,
}

// Contracts 已部署合约地址，未部署为空
type Contracts struct {
	Network              string `json:"network"`
	VolatilityCalculator string `json:"volatility_calculator,omitempty"`
	TWAPExecutor         string `json:"twap_executor,omitempty"`
	OptionsCalculator    string `json:"options_calculator,omitempty"`
}

// Config 门面配置
type Config struct {
	Contracts    Contracts
	GasEstimates map[string]uint64
	Defaults     Defaults
	Clock        protocol.Clock
}

// AmountRequest 按策略名计算金额的请求
type AmountRequest struct {
	Order     *protocol.Order
	OrderHash protocol.Hash
	Taker     protocol.Address
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Payload   []byte
}

// StrategyFacade 策略门面
type StrategyFacade struct {
	sources    map[string]protocol.AmountSource
	volatility *voldomain.Engine
	config     Config
	logger     *slog.Logger
}

// NewStrategyFacade 创建策略门面
func NewStrategyFacade(vol *volapp.Calculator, twap *twapapp.Executor, options *optapp.Calculator, engine *voldomain.Engine, cfg Config, logger *slog.Logger) *StrategyFacade {
	gas := make(map[string]uint64, len(DefaultGasEstimates))
	for k, v := range DefaultGasEstimates {
		gas[k] = v
	}
	for k, v := range cfg.GasEstimates {
		gas[strings.ToLower(k)] = v
	}
	cfg.GasEstimates = gas
	if cfg.Defaults.Volatility.BaselineVolatility == 0 {
		cfg.Defaults.Volatility = DefaultTemplates.Volatility
	}
	if cfg.Defaults.TWAP.Intervals == 0 || cfg.Defaults.TWAP.Duration == 0 {
		cfg.Defaults.TWAP = DefaultTemplates.TWAP
	}
	if cfg.Clock == nil {
		cfg.Clock = protocol.SystemClock
	}

	return &StrategyFacade{
		sources: map[string]protocol.AmountSource{
			volapp.StrategyName:  vol,
			twapapp.StrategyName: twap,
			optapp.StrategyName:  options,
		},
		volatility: engine,
		config:     cfg,
		logger:     logger.With("module", "facade"),
	}
}

// Source 按名称获取金额计算器
func (f *StrategyFacade) Source(name string) (protocol.AmountSource, error) {
	src, ok := f.sources[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return src, nil
}

// GetMakingAmount 按策略名计算 making 数量
func (f *StrategyFacade) GetMakingAmount(ctx context.Context, name string, req *AmountRequest) (decimal.Decimal, error) {
	src, err := f.Source(name)
	if err != nil {
		return decimal.Zero, err
	}
	return src.GetMakingAmount(ctx, req.Order, req.OrderHash, req.Taker, req.Amount, req.Remaining, req.Payload)
}

// GetTakingAmount 按策略名计算 taking 数量
func (f *StrategyFacade) GetTakingAmount(ctx context.Context, name string, req *AmountRequest) (decimal.Decimal, error) {
	src, err := f.Source(name)
	if err != nil {
		return decimal.Zero, err
	}
	return src.GetTakingAmount(ctx, req.Order, req.OrderHash, req.Taker, req.Amount, req.Remaining, req.Payload)
}

// BatchApplyAdjustment 同一快照下批量调整金额。快照边界非法时整体拒绝
func (f *StrategyFacade) BatchApplyAdjustment(amounts []decimal.Decimal, s *voldomain.Snapshot) ([]decimal.Decimal, error) {
	if err := s.ValidateBounds(); err != nil {
		return nil, err
	}
	if err := protocol.CheckAmounts(amounts...); err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(amounts))
	for i, a := range amounts {
		out[i] = f.volatility.ApplyAdjustment(a, s)
	}
	return out, nil
}

// BatchRiskScore 批量计算风险分
func (f *StrategyFacade) BatchRiskScore(snapshots []*voldomain.Snapshot) []uint64 {
	out := make([]uint64, len(snapshots))
	for i, s := range snapshots {
		out[i] = f.volatility.RiskScore(s)
	}
	return out
}

// GasEstimate 策略燃料估算
func (f *StrategyFacade) GasEstimate(name string) (uint64, error) {
	gas, ok := f.config.GasEstimates[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return gas, nil
}

// Contracts 已部署合约地址
func (f *StrategyFacade) Contracts() Contracts {
	return f.config.Contracts
}
