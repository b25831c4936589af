package protocol

import "github.com/shopspring/decimal"

// 合约级常量，属于对外可观察的行为约定，测试覆盖其边界值。
const (
	// BasisPoints 基点刻度，10000 = 100%
	BasisPoints uint64 = 10000
	// PercentScale 百分比刻度，100 = 不调整
	PercentScale uint64 = 100

	// StalenessThreshold 波动率快照最大允许年龄（秒）
	StalenessThreshold uint64 = 3600
	// MaxVolatilityMultiplier 当前波动率相对基准波动率的最大倍数
	MaxVolatilityMultiplier uint64 = 10

	// RandomizationWindow TWAP 随机因子量化窗口（秒），同一窗口内结果一致
	RandomizationWindow uint64 = 300
	// RandomFactorMin / RandomFactorMax TWAP 随机因子范围（百分比，闭区间）
	RandomFactorMin uint64 = 85
	RandomFactorMax uint64 = 115

	// MinTimeToExpiration 期权最短期限（秒）
	MinTimeToExpiration uint64 = 5 * 60
	// MaxTimeToExpiration 期权最长期限（秒）
	MaxTimeToExpiration uint64 = 30 * 24 * 3600
	// ExerciseWindow 到期前允许行权的窗口（秒）
	ExerciseWindow uint64 = 30 * 60
	// SecondsPerYear 时间价值年化基数
	SecondsPerYear uint64 = 365 * 24 * 3600
)

// PricePrecision 价格精度 1e18
var PricePrecision = decimal.New(1, 18)
