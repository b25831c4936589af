package domain

import (
	"math"
	"math/bits"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// 风险评分与调整系数的刻度
const (
	RiskScoreFloor uint64 = 100 // 基准及以下的风险评分下限
	RiskScoreMid   uint64 = 600 // 2 倍基准处的风险评分
	RiskScoreMax   uint64 = 1000

	NeutralFactor      uint64 = 100 // 100 = 不调整
	ConservativeFactor uint64 = 90
	MaxFactorDelta     uint64 = 50

	SlowIntervalMultiplier uint64 = 200
)

// Engine 波动率引擎，无状态，所有方法都是输入快照的纯函数
type Engine struct{}

// NewEngine 创建波动率引擎
func NewEngine() *Engine {
	return &Engine{}
}

// Validate 校验快照
func (e *Engine) Validate(s *Snapshot, now uint64) error {
	return s.Validate(now)
}

// ShouldPause 当前波动率超过紧急阈值时暂停执行
func (e *Engine) ShouldPause(s *Snapshot) bool {
	return s.CurrentVolatility > s.EmergencyThreshold
}

// RiskScore 风险评分 [0,1000]。
// 基准及以下固定为 100；2 倍基准内线性映射到 [100,600]；4 倍基准内映射到 [600,1000]；之后封顶。
func (e *Engine) RiskScore(s *Snapshot) uint64 {
	if s.CurrentVolatility <= s.BaselineVolatility {
		return RiskScoreFloor
	}
	if s.BaselineVolatility == 0 {
		return RiskScoreMax
	}

	bps := protocol.BasisPoints
	ratio := mulDiv64(s.CurrentVolatility, bps, s.BaselineVolatility)
	switch {
	case ratio <= 2*bps:
		return RiskScoreFloor + (ratio-bps)*(RiskScoreMid-RiskScoreFloor)/bps
	case ratio <= 4*bps:
		return RiskScoreMid + (ratio-2*bps)*(RiskScoreMax-RiskScoreMid)/(2*bps)
	default:
		return RiskScoreMax
	}
}

// AdjustmentFactor 仓位调整系数（百分比，100 = 不调整），范围 [50,150]。
// 低于基准时按偏离程度放大，高于阈值时按超出基准的幅度缩小；正常区间为 100，保守模式 90。
// 保守模式同样约束高波动分支不高于 90，保证高于基准后系数随波动率单调不增。
func (e *Engine) AdjustmentFactor(s *Snapshot) uint64 {
	if s.CurrentVolatility <= s.BaselineVolatility {
		boost := scaledDelta(s.BaselineVolatility-s.CurrentVolatility, s.BaselineVolatility)
		return NeutralFactor + boost
	}

	if s.CurrentVolatility > s.VolatilityThreshold {
		factor := NeutralFactor - scaledDelta(s.CurrentVolatility-s.BaselineVolatility, s.BaselineVolatility)
		if s.ConservativeMode && factor > ConservativeFactor {
			factor = ConservativeFactor
		}
		return factor
	}

	if s.ConservativeMode {
		return ConservativeFactor
	}
	return NeutralFactor
}

// IntervalMultiplier TWAP 间隔系数（百分比）。
// 高于阈值时缩短间隔（最多缩短 50%），低于半个基准时放慢到 200，其余为 100。
func (e *Engine) IntervalMultiplier(s *Snapshot) uint64 {
	c, b := s.CurrentVolatility, s.BaselineVolatility
	if c > s.VolatilityThreshold {
		return NeutralFactor - scaledDelta(c-b, b)
	}
	if c < b && b-c > c {
		return SlowIntervalMultiplier
	}
	return NeutralFactor
}

// ApplyAdjustment 按调整系数缩放金额并夹到 [min,max]。
// 熔断时直接返回 0，不做夹取；先按 max 封顶再按 min 托底。
func (e *Engine) ApplyAdjustment(amount decimal.Decimal, s *Snapshot) decimal.Decimal {
	if e.ShouldPause(s) {
		return decimal.Zero
	}

	factor := fixedpoint.FromUint64(e.AdjustmentFactor(s))
	adjusted := fixedpoint.MulDiv(amount, factor, fixedpoint.FromUint64(protocol.PercentScale))

	if adjusted.GreaterThan(s.MaxExecutionSize) {
		adjusted = s.MaxExecutionSize
	}
	if adjusted.LessThan(s.MinExecutionSize) {
		adjusted = s.MinExecutionSize
	}
	return adjusted
}

// scaledDelta 计算 min(50, delta*50/base)，base 为 0 时取上限
func scaledDelta(delta, base uint64) uint64 {
	if base == 0 {
		if delta == 0 {
			return 0
		}
		return MaxFactorDelta
	}
	v := mulDiv64(delta, MaxFactorDelta, base)
	if v > MaxFactorDelta {
		return MaxFactorDelta
	}
	return v
}

// mulDiv64 计算 floor(a*b/d)，128 位中间值，商溢出时饱和为 MaxUint64
func mulDiv64(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}
