// Package domain 执行权期权领域层
// 生成摘要：
// 1) 期权以订单为标的，持有人在到期前 30 分钟窗口内可行权（欧式）
// 2) 行权检查顺序固定，已行权拒绝优先，保证拒绝结果与调用方和价格无关
// 3) 溢价与希腊值为简化模型：时间价值线性于期限与波动率
package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

var (
	ErrInvalidStrikePrice     = protocol.NewError(protocol.ClassValidation, "INVALID_STRIKE_PRICE", "strike price must be positive")
	ErrInvalidPremium         = protocol.NewError(protocol.ClassValidation, "INVALID_PREMIUM", "premium must be positive")
	ErrInvalidExpiration      = protocol.NewError(protocol.ClassValidation, "INVALID_EXPIRATION", "expiration must be between 5 minutes and 30 days from now")
	ErrOptionDataMismatch     = protocol.NewError(protocol.ClassValidation, "OPTION_DATA_MISMATCH", "option payload does not match the ledger")
	ErrOptionNotFound         = protocol.NewError(protocol.ClassNotFound, "OPTION_NOT_FOUND", "option does not exist")
	ErrOptionAlreadyExists    = protocol.NewError(protocol.ClassState, "OPTION_ALREADY_EXISTS", "option with the same id already exists")
	ErrOptionAlreadyExercised = protocol.NewError(protocol.ClassState, "OPTION_ALREADY_EXERCISED", "option has already been exercised")
	ErrOptionNotExercised     = protocol.NewError(protocol.ClassState, "OPTION_NOT_EXERCISED", "option must be exercised before filling")
	ErrNotOptionHolder        = protocol.NewError(protocol.ClassValidation, "NOT_OPTION_HOLDER", "caller is not the option holder")
	ErrOptionExpired          = protocol.NewError(protocol.ClassTemporal, "OPTION_EXPIRED", "option has expired")
	ErrOutsideExerciseWindow  = protocol.NewError(protocol.ClassTemporal, "OUTSIDE_EXERCISE_WINDOW", "exercise is only allowed in the final window before expiration")
	ErrOptionNotProfitable    = protocol.NewError(protocol.ClassEconomic, "OPTION_NOT_PROFITABLE", "exercise would not be profitable at the current price")
)

// Option 订单执行权期权
type Option struct {
	ID                  protocol.Hash    `json:"id"`
	StrikePrice         decimal.Decimal  `json:"strike_price"`
	Expiration          uint64           `json:"expiration"`
	PremiumPaid         decimal.Decimal  `json:"premium_paid"`
	IsCall              bool             `json:"is_call"`
	OptionHolder        protocol.Address `json:"option_holder"`
	OptionSeller        protocol.Address `json:"option_seller"`
	IsExercised         bool             `json:"is_exercised"`
	ImpliedVolatility   uint64           `json:"implied_volatility"`
	CreationTime        uint64           `json:"creation_time"`
	UnderlyingOrderHash protocol.Hash    `json:"underlying_order_hash"`
}

// OptionID 期权 ID = keccak256(orderHash || holder || uint256(creationTime))
func OptionID(orderHash protocol.Hash, holder protocol.Address, creationTime uint64) protocol.Hash {
	return protocol.Keccak256(orderHash[:], holder[:], protocol.Uint256Word(creationTime))
}

// CreateParams 创建参数
type CreateParams struct {
	OrderHash         protocol.Hash
	Holder            protocol.Address
	Seller            protocol.Address
	StrikePrice       decimal.Decimal
	Expiration        uint64
	Premium           decimal.Decimal
	IsCall            bool
	ImpliedVolatility uint64
}

// NewOption 校验参数并创建期权
func NewOption(p CreateParams, now uint64) (*Option, error) {
	if !fixedpoint.IsUint256(p.StrikePrice) || !p.StrikePrice.IsPositive() {
		return nil, ErrInvalidStrikePrice
	}
	if !fixedpoint.IsUint256(p.Premium) || !p.Premium.IsPositive() {
		return nil, ErrInvalidPremium
	}
	if p.Expiration < now || p.Expiration-now < protocol.MinTimeToExpiration || p.Expiration-now > protocol.MaxTimeToExpiration {
		return nil, ErrInvalidExpiration
	}

	return &Option{
		ID:                  OptionID(p.OrderHash, p.Holder, now),
		StrikePrice:         p.StrikePrice,
		Expiration:          p.Expiration,
		PremiumPaid:         p.Premium,
		IsCall:              p.IsCall,
		OptionHolder:        p.Holder,
		OptionSeller:        p.Seller,
		ImpliedVolatility:   p.ImpliedVolatility,
		CreationTime:        now,
		UnderlyingOrderHash: p.OrderHash,
	}, nil
}

// Type 期权方向
func (o *Option) Type() string {
	if o.IsCall {
		return "call"
	}
	return "put"
}

// CheckExercise 按固定顺序检查行权前置条件：已行权 -> 持有人 -> 过期 -> 窗口
func (o *Option) CheckExercise(exerciser protocol.Address, now uint64) error {
	if o.IsExercised {
		return ErrOptionAlreadyExercised
	}
	if exerciser != o.OptionHolder {
		return ErrNotOptionHolder
	}
	if now > o.Expiration {
		return ErrOptionExpired
	}
	if !o.InExerciseWindow(now) {
		return ErrOutsideExerciseWindow
	}
	return nil
}

// CanExercise 是否满足行权前置条件（不含盈利检查）
func (o *Option) CanExercise(exerciser protocol.Address, now uint64) bool {
	return o.CheckExercise(exerciser, now) == nil
}

// InExerciseWindow now 是否处于 [expiration-30min, expiration]
func (o *Option) InExerciseWindow(now uint64) bool {
	if now > o.Expiration {
		return false
	}
	return o.Expiration-now <= protocol.ExerciseWindow
}

// IsProfitable 看涨要求现价高于行权价，看跌要求低于
func (o *Option) IsProfitable(currentPrice decimal.Decimal) bool {
	if o.IsCall {
		return currentPrice.GreaterThan(o.StrikePrice)
	}
	return currentPrice.LessThan(o.StrikePrice)
}

// RealizedProfit max(0, |price-strike| * making / 1e18 - premium)
func (o *Option) RealizedProfit(currentPrice, makingAmount decimal.Decimal) decimal.Decimal {
	delta := currentPrice.Sub(o.StrikePrice).Abs()
	gross := fixedpoint.MulDiv(delta, makingAmount, protocol.PricePrecision)
	return fixedpoint.SubFloor(gross, o.PremiumPaid)
}

// SameTerms 比较负载与账本中不可变字段是否一致
func (o *Option) SameTerms(other *Option) bool {
	return o.StrikePrice.Equal(other.StrikePrice) &&
		o.Expiration == other.Expiration &&
		o.PremiumPaid.Equal(other.PremiumPaid) &&
		o.IsCall == other.IsCall &&
		o.OptionHolder == other.OptionHolder &&
		o.OptionSeller == other.OptionSeller &&
		o.ImpliedVolatility == other.ImpliedVolatility &&
		o.CreationTime == other.CreationTime &&
		o.UnderlyingOrderHash == other.UnderlyingOrderHash
}

// Status 期权状态快照
type Status struct {
	Option           *Option `json:"option"`
	CanExercise      bool    `json:"can_exercise"`
	IsExpired        bool    `json:"is_expired"`
	InExerciseWindow bool    `json:"in_exercise_window"`
	SecondsToExpiry  uint64  `json:"seconds_to_expiry"`
	SecondsToWindow  uint64  `json:"seconds_to_window"`
}

// StatusAt 计算 now 时刻的状态（以持有人身份评估可行权性）
func (o *Option) StatusAt(now uint64) *Status {
	s := &Status{
		Option:           o,
		CanExercise:      o.CanExercise(o.OptionHolder, now),
		IsExpired:        now > o.Expiration,
		InExerciseWindow: o.InExerciseWindow(now),
	}
	if now < o.Expiration {
		s.SecondsToExpiry = o.Expiration - now
		if s.SecondsToExpiry > protocol.ExerciseWindow {
			s.SecondsToWindow = s.SecondsToExpiry - protocol.ExerciseWindow
		}
	}
	return s
}
