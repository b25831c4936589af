// Package domain TWAP 切片执行领域层
// 生成摘要：
// 1) 调度参数由调用方每次传入，引擎本身无状态
// 2) 暂停检查先于时间检查，"过早"与"熔断"都是软结果
// 3) 随机化因子按 5 分钟窗口量化，同窗口内结果一致
package domain

import (
	"math/bits"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

var (
	ErrInvalidSchedule   = protocol.NewError(protocol.ClassValidation, "INVALID_TWAP_SCHEDULE", "twap schedule parameters are invalid")
	ErrTWAPNotStarted    = protocol.NewError(protocol.ClassTemporal, "TWAP_NOT_STARTED", "twap execution has not started")
	ErrTWAPExpired       = protocol.NewError(protocol.ClassTemporal, "TWAP_EXPIRED", "twap execution window has ended")
	ErrTWAPFullyExecuted = protocol.NewError(protocol.ClassState, "TWAP_FULLY_EXECUTED", "twap order is fully executed")
)

// Schedule TWAP 调度参数。LastExecutionTime 为 0 表示尚未执行过
type Schedule struct {
	StartTime          uint64          `json:"start_time"`
	Duration           uint64          `json:"duration"`
	Intervals          uint64          `json:"intervals"`
	BaseInterval       uint64          `json:"base_interval"`
	LastExecutionTime  uint64          `json:"last_execution_time"`
	ExecutedAmount     decimal.Decimal `json:"executed_amount"`
	RandomizeExecution bool            `json:"randomize_execution"`
	AdaptiveIntervals  bool            `json:"adaptive_intervals"`
}

// Validate 校验调度参数
func (s *Schedule) Validate() error {
	if s.Duration == 0 || s.Intervals == 0 || s.BaseInterval == 0 {
		return ErrInvalidSchedule
	}
	if _, carry := bits.Add64(s.StartTime, s.Duration, 0); carry != 0 {
		return ErrInvalidSchedule
	}
	if !fixedpoint.IsUint256(s.ExecutedAmount) {
		return ErrInvalidSchedule
	}
	return nil
}

// EndTime 执行窗口结束时刻（含）
func (s *Schedule) EndTime() uint64 {
	return s.StartTime + s.Duration
}

// ExecutionState 单次计算结果，只读派生，不持久化
type ExecutionState struct {
	RecommendedAmount  decimal.Decimal `json:"recommended_amount"`
	AdjustedInterval   uint64          `json:"adjusted_interval"`
	NextExecutionTime  uint64          `json:"next_execution_time"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	ProgressPercentage uint64          `json:"progress_percentage"` // 基点
	CanExecute         bool            `json:"can_execute"`
	IsPaused           bool            `json:"is_paused"`
}
