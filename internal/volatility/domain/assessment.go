package domain

import "github.com/wyfcoding/vectorplus/pkg/protocol"

// 咨询性告警阈值
const (
	conservativeHintMultiplier uint64 = 3
)

// Assessment 快照综合评估结果
type Assessment struct {
	RiskScore          uint64   `json:"risk_score"`
	AdjustmentFactor   uint64   `json:"adjustment_factor"`
	IntervalMultiplier uint64   `json:"interval_multiplier"`
	ShouldPause        bool     `json:"should_pause"`
	AgeSeconds         uint64   `json:"age_seconds"`
	ValidationError    error    `json:"-"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Valid 快照是否可用
func (a *Assessment) Valid() bool { return a.ValidationError == nil }

// Assess 一次性给出快照的校验结果、各项系数与告警
func (e *Engine) Assess(s *Snapshot, now uint64) *Assessment {
	a := &Assessment{
		RiskScore:          e.RiskScore(s),
		AdjustmentFactor:   e.AdjustmentFactor(s),
		IntervalMultiplier: e.IntervalMultiplier(s),
		ShouldPause:        e.ShouldPause(s),
		AgeSeconds:         s.Age(now),
		ValidationError:    s.Validate(now),
	}

	if !s.ConservativeMode && exceedsMultiple(s.CurrentVolatility, s.BaselineVolatility, conservativeHintMultiplier) {
		a.Warnings = append(a.Warnings, "current volatility is more than 3x baseline, consider conservative mode")
	}
	if a.AgeSeconds > protocol.StalenessThreshold {
		a.Warnings = append(a.Warnings, "snapshot is more than 1 hour old")
	}
	if s.MaxExecutionSize.Equal(s.MinExecutionSize) {
		a.Warnings = append(a.Warnings, "max execution size equals min execution size, adjustment has no effect")
	}
	return a
}
