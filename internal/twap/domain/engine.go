package domain

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"

	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// VolatilityModel TWAP 依赖的波动率能力，由 volatility/domain.Engine 实现
type VolatilityModel interface {
	Validate(s *voldomain.Snapshot, now uint64) error
	ShouldPause(s *voldomain.Snapshot) bool
	IntervalMultiplier(s *voldomain.Snapshot) uint64
	ApplyAdjustment(amount decimal.Decimal, s *voldomain.Snapshot) decimal.Decimal
}

// Engine TWAP 引擎
type Engine struct {
	volatility VolatilityModel
}

// NewEngine 创建 TWAP 引擎
func NewEngine(volatility VolatilityModel) *Engine {
	return &Engine{volatility: volatility}
}

// CalculateExecution 计算当前时刻的执行状态。
// 顺序：调度校验 -> 快照边界 -> 熔断（软）-> 快照校验 -> 时间与剩余量 -> 间隔门控（软）-> 切片。
func (e *Engine) CalculateExecution(order *protocol.Order, orderHash protocol.Hash, s *Schedule, snap *voldomain.Snapshot, remaining decimal.Decimal, now uint64) (*ExecutionState, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	state := &ExecutionState{
		RecommendedAmount:  decimal.Zero,
		RemainingAmount:    remaining,
		ProgressPercentage: ExecutionProgress(order, remaining),
	}

	if err := snap.ValidateBounds(); err != nil {
		return nil, err
	}
	if e.volatility.ShouldPause(snap) {
		state.IsPaused = true
		return state, nil
	}
	if err := e.volatility.Validate(snap, now); err != nil {
		return nil, err
	}

	switch {
	case now < s.StartTime:
		return nil, ErrTWAPNotStarted
	case now > s.EndTime():
		return nil, ErrTWAPExpired
	case !remaining.IsPositive():
		return nil, ErrTWAPFullyExecuted
	}

	state.AdjustedInterval = e.adjustedInterval(s, snap)
	state.NextExecutionTime = nextExecutionTime(s, state.AdjustedInterval)
	if now < state.NextExecutionTime {
		return state, nil
	}
	state.CanExecute = true

	slice := fixedpoint.Min(fixedpoint.Div(order.MakingAmount, fixedpoint.FromUint64(s.Intervals)), remaining)
	amount := e.volatility.ApplyAdjustment(slice, snap)
	if s.RandomizeExecution {
		amount = fixedpoint.MulDiv(amount, fixedpoint.FromUint64(RandomFactor(orderHash, now)), fixedpoint.FromUint64(protocol.PercentScale))
	}
	state.RecommendedAmount = fixedpoint.Min(amount, remaining)
	return state, nil
}

// NextExecutionTime 下一次允许执行的时刻
func (e *Engine) NextExecutionTime(s *Schedule, snap *voldomain.Snapshot) (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return nextExecutionTime(s, e.adjustedInterval(s, snap)), nil
}

// ShouldPauseExecution 快照是否触发熔断
func (e *Engine) ShouldPauseExecution(snap *voldomain.Snapshot) bool {
	return e.volatility.ShouldPause(snap)
}

func (e *Engine) adjustedInterval(s *Schedule, snap *voldomain.Snapshot) uint64 {
	if !s.AdaptiveIntervals {
		return s.BaseInterval
	}
	hi, lo := bits.Mul64(s.BaseInterval, e.volatility.IntervalMultiplier(snap))
	if hi >= protocol.PercentScale {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, protocol.PercentScale)
	return q
}

func nextExecutionTime(s *Schedule, interval uint64) uint64 {
	if s.LastExecutionTime == 0 {
		return s.StartTime
	}
	next, carry := bits.Add64(s.LastExecutionTime, interval, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return next
}

// ExecutionProgress 执行进度（基点）
func ExecutionProgress(order *protocol.Order, remaining decimal.Decimal) uint64 {
	if !order.MakingAmount.IsPositive() {
		return 0
	}
	executed := fixedpoint.SubFloor(order.MakingAmount, remaining)
	bps := fixedpoint.MulDiv(executed, fixedpoint.FromUint64(protocol.BasisPoints), order.MakingAmount)
	v, _ := fixedpoint.ToUint64(bps)
	return v
}

var randomSpan = new(big.Int).SetUint64(protocol.RandomFactorMax - protocol.RandomFactorMin + 1)

// RandomFactor 伪随机因子 [85,115]，由订单哈希与 5 分钟时间窗口决定
func RandomFactor(orderHash protocol.Hash, now uint64) uint64 {
	h := protocol.Keccak256(orderHash[:], protocol.Uint256Word(now/protocol.RandomizationWindow))
	n := new(big.Int).SetBytes(h[:])
	return protocol.RandomFactorMin + n.Mod(n, randomSpan).Uint64()
}
