package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// 希腊值为固定常量（基点），不随价格连续变化
const (
	CallDelta int64 = 5000
	PutDelta  int64 = -5000
	Gamma     int64 = 100
	Vega      int64 = 200

	secondsPerDay uint64 = 86400
)

// PremiumQuote 溢价报价
type PremiumQuote struct {
	ImpliedPrice   decimal.Decimal `json:"implied_price"`
	IntrinsicValue decimal.Decimal `json:"intrinsic_value"`
	TimeValue      decimal.Decimal `json:"time_value"`
	Premium        decimal.Decimal `json:"premium"`
}

// CalculatePremium 内在价值 + 线性时间价值。
// 订单隐含价格 = taking*1e18/making；时间价值 = 名义价值*波动率*期限/(一年秒数*10000)。
func CalculatePremium(order *protocol.Order, currentPrice decimal.Decimal, timeToExpiration, volatility uint64, isCall bool) (*PremiumQuote, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := protocol.CheckAmounts(currentPrice); err != nil {
		return nil, err
	}

	implied := fixedpoint.MulDiv(order.TakingAmount, protocol.PricePrecision, order.MakingAmount)
	var perUnit decimal.Decimal
	if isCall {
		perUnit = fixedpoint.SubFloor(currentPrice, implied)
	} else {
		perUnit = fixedpoint.SubFloor(implied, currentPrice)
	}
	intrinsic := fixedpoint.MulDiv(perUnit, order.MakingAmount, protocol.PricePrecision)

	notional := fixedpoint.MulDiv(order.MakingAmount, currentPrice, protocol.PricePrecision)
	timeValue := linearTimeValue(notional, volatility, timeToExpiration)

	return &PremiumQuote{
		ImpliedPrice:   implied,
		IntrinsicValue: intrinsic,
		TimeValue:      timeValue,
		Premium:        intrinsic.Add(timeValue),
	}, nil
}

// Greeks 希腊值与单位价值
type Greeks struct {
	Delta          int64           `json:"delta"`
	Gamma          int64           `json:"gamma"`
	Theta          decimal.Decimal `json:"theta"`
	Vega           int64           `json:"vega"`
	IntrinsicValue decimal.Decimal `json:"intrinsic_value"`
	TimeValue      decimal.Decimal `json:"time_value"`
}

// GreeksAt 计算 now 时刻的希腊值。Theta 为未来一天（不足一天按剩余期限）损失的时间价值
func (o *Option) GreeksAt(currentPrice decimal.Decimal, now uint64) *Greeks {
	var tte uint64
	if o.Expiration > now {
		tte = o.Expiration - now
	}

	g := &Greeks{Delta: CallDelta, Gamma: Gamma, Vega: Vega}
	if o.IsCall {
		g.IntrinsicValue = fixedpoint.SubFloor(currentPrice, o.StrikePrice)
	} else {
		g.Delta = PutDelta
		g.IntrinsicValue = fixedpoint.SubFloor(o.StrikePrice, currentPrice)
	}
	g.TimeValue = linearTimeValue(currentPrice, o.ImpliedVolatility, tte)
	g.Theta = linearTimeValue(currentPrice, o.ImpliedVolatility, min(tte, secondsPerDay))
	return g
}

var timeValueScale = fixedpoint.FromUint64(protocol.SecondsPerYear).Mul(fixedpoint.FromUint64(protocol.BasisPoints))

func linearTimeValue(notional decimal.Decimal, volatility, seconds uint64) decimal.Decimal {
	factor := fixedpoint.FromUint64(volatility).Mul(fixedpoint.FromUint64(seconds))
	return fixedpoint.MulDiv(notional, factor, timeValueScale)
}
