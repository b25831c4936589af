package application

import (
	"github.com/shopspring/decimal"

	twapdomain "github.com/wyfcoding/vectorplus/internal/twap/domain"
	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
)

// 模板阈值相对基准的倍数
const (
	templateThresholdMultiple = 2
	templateEmergencyMultiple = 4
)

// VolatilityDefaults 波动率模板默认值
type VolatilityDefaults struct {
	BaselineVolatility uint64
	MaxExecutionSize   decimal.Decimal
	MinExecutionSize   decimal.Decimal
	ConservativeMode   bool
}

// TWAPDefaults TWAP 模板默认值
type TWAPDefaults struct {
	Duration           uint64
	Intervals          uint64
	RandomizeExecution bool
	AdaptiveIntervals  bool
}

// Defaults 模板默认值
type Defaults struct {
	Volatility VolatilityDefaults
	TWAP       TWAPDefaults
}

// DefaultTemplates 未配置时的模板默认值
var DefaultTemplates = Defaults{
	Volatility: VolatilityDefaults{
		BaselineVolatility: 300,
		MaxExecutionSize:   decimal.New(5, 18),
		MinExecutionSize:   decimal.New(1, 17),
	},
	TWAP: TWAPDefaults{
		Duration:           7200,
		Intervals:          12,
		RandomizeExecution: true,
		AdaptiveIntervals:  true,
	},
}

// VolatilityTemplate 以当前时刻生成波动率快照模板。current 为 0 时取基准值
func (f *StrategyFacade) VolatilityTemplate(current uint64) *voldomain.Snapshot {
	d := f.config.Defaults.Volatility
	if current == 0 {
		current = d.BaselineVolatility
	}
	return &voldomain.Snapshot{
		BaselineVolatility:  d.BaselineVolatility,
		CurrentVolatility:   current,
		VolatilityThreshold: d.BaselineVolatility * templateThresholdMultiple,
		EmergencyThreshold:  d.BaselineVolatility * templateEmergencyMultiple,
		MaxExecutionSize:    d.MaxExecutionSize,
		MinExecutionSize:    d.MinExecutionSize,
		LastUpdateTime:      f.config.Clock.Now(),
		ConservativeMode:    d.ConservativeMode,
	}
}

// TWAPTemplate 生成 TWAP 调度模板，start 为 0 时从当前时刻开始，基础间隔至少 1 秒
func (f *StrategyFacade) TWAPTemplate(start uint64) *twapdomain.Schedule {
	d := f.config.Defaults.TWAP
	if start == 0 {
		start = f.config.Clock.Now()
	}
	base := d.Duration / d.Intervals
	if base == 0 {
		base = 1
	}
	return &twapdomain.Schedule{
		StartTime:          start,
		Duration:           d.Duration,
		Intervals:          d.Intervals,
		BaseInterval:       base,
		ExecutedAmount:     decimal.Zero,
		RandomizeExecution: d.RandomizeExecution,
		AdaptiveIntervals:  d.AdaptiveIntervals,
	}
}
