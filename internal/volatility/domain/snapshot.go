// Package domain 波动率引擎领域层
// 生成摘要：
// 1) 定义波动率快照与校验规则（校验顺序对外可见）
// 2) 纯函数计算风险评分、仓位调整系数、TWAP 间隔系数
// 3) 快照负载编解码
package domain

import (
	"math/bits"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

var (
	ErrInvalidVolatilityBounds = protocol.NewError(protocol.ClassValidation, "INVALID_VOLATILITY_BOUNDS", "volatility snapshot bounds are inconsistent")
	ErrEmergencyVolatility     = protocol.NewError(protocol.ClassEconomic, "EMERGENCY_VOLATILITY", "current volatility exceeds emergency threshold")
	ErrVolatilityTooHigh       = protocol.NewError(protocol.ClassEconomic, "VOLATILITY_TOO_HIGH", "current volatility exceeds the allowed multiple of baseline")
	ErrStaleVolatilityData     = protocol.NewError(protocol.ClassTemporal, "STALE_VOLATILITY_DATA", "volatility snapshot is stale")
)

// Snapshot 波动率快照，由预言机/链下进程按次生成，随调用传入，不做持久化。
// 波动率字段单位为基点。
type Snapshot struct {
	BaselineVolatility  uint64          `json:"baseline_volatility"`
	CurrentVolatility   uint64          `json:"current_volatility"`
	VolatilityThreshold uint64          `json:"volatility_threshold"`
	EmergencyThreshold  uint64          `json:"emergency_threshold"`
	MaxExecutionSize    decimal.Decimal `json:"max_execution_size"`
	MinExecutionSize    decimal.Decimal `json:"min_execution_size"`
	LastUpdateTime      uint64          `json:"last_update_time"`
	ConservativeMode    bool            `json:"conservative_mode"`
}

// Validate 按固定顺序校验：边界 -> 紧急阈值 -> 基准倍数 -> 新鲜度。
// 调用方可能依赖具体触发哪个错误，顺序不可调整。
func (s *Snapshot) Validate(now uint64) error {
	if !s.boundsValid() {
		return ErrInvalidVolatilityBounds
	}
	if s.CurrentVolatility > s.EmergencyThreshold {
		return ErrEmergencyVolatility
	}
	if exceedsMultiple(s.CurrentVolatility, s.BaselineVolatility, protocol.MaxVolatilityMultiplier) {
		return ErrVolatilityTooHigh
	}
	if s.LastUpdateTime > now || now-s.LastUpdateTime >= protocol.StalenessThreshold {
		return ErrStaleVolatilityData
	}
	return nil
}

// ValidateBounds 仅校验边界一致性，不涉及时间
func (s *Snapshot) ValidateBounds() error {
	if !s.boundsValid() {
		return ErrInvalidVolatilityBounds
	}
	return nil
}

func (s *Snapshot) boundsValid() bool {
	if s.BaselineVolatility == 0 {
		return false
	}
	if !fixedpoint.IsUint256(s.MaxExecutionSize) || !fixedpoint.IsUint256(s.MinExecutionSize) {
		return false
	}
	if s.MaxExecutionSize.LessThan(s.MinExecutionSize) {
		return false
	}
	return s.VolatilityThreshold >= s.BaselineVolatility && s.EmergencyThreshold >= s.VolatilityThreshold
}

// Age 快照年龄（秒），未来时间戳返回 0
func (s *Snapshot) Age(now uint64) uint64 {
	if s.LastUpdateTime >= now {
		return 0
	}
	return now - s.LastUpdateTime
}

// exceedsMultiple 判断 v > base*m，乘积溢出时视为不超过
func exceedsMultiple(v, base, m uint64) bool {
	hi, lo := bits.Mul64(base, m)
	return hi == 0 && v > lo
}
