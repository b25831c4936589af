package domain

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wyfcoding/vectorplus/pkg/payload"
)

const (
	fieldStrike       protowire.Number = 1
	fieldExpiration   protowire.Number = 2
	fieldPremium      protowire.Number = 3
	fieldIsCall       protowire.Number = 4
	fieldHolder       protowire.Number = 5
	fieldSeller       protowire.Number = 6
	fieldExercised    protowire.Number = 7
	fieldImpliedVol   protowire.Number = 8
	fieldCreationTime protowire.Number = 9
	fieldOrderHash    protowire.Number = 10
)

var optionSchema = payload.Schema{
	fieldStrike:       protowire.BytesType,
	fieldExpiration:   protowire.VarintType,
	fieldPremium:      protowire.BytesType,
	fieldIsCall:       protowire.VarintType,
	fieldHolder:       protowire.BytesType,
	fieldSeller:       protowire.BytesType,
	fieldExercised:    protowire.VarintType,
	fieldImpliedVol:   protowire.VarintType,
	fieldCreationTime: protowire.VarintType,
	fieldOrderHash:    protowire.BytesType,
}

// EncodeOption 编码期权负载。ID 不入负载，由订单哈希、持有人与创建时间推导
func EncodeOption(o *Option) ([]byte, error) {
	var e payload.Encoder
	e.Amount(fieldStrike, o.StrikePrice)
	e.Uint64(fieldExpiration, o.Expiration)
	e.Amount(fieldPremium, o.PremiumPaid)
	e.Bool(fieldIsCall, o.IsCall)
	e.Raw(fieldHolder, o.OptionHolder[:])
	e.Raw(fieldSeller, o.OptionSeller[:])
	e.Bool(fieldExercised, o.IsExercised)
	e.Uint64(fieldImpliedVol, o.ImpliedVolatility)
	e.Uint64(fieldCreationTime, o.CreationTime)
	e.Raw(fieldOrderHash, o.UnderlyingOrderHash[:])
	if err := e.Err(); err != nil {
		return nil, err
	}
	return payload.Seal(payload.KindOption, e.Finish()), nil
}

// DecodeOption 解码期权负载并推导 ID
func DecodeOption(b []byte) (*Option, error) {
	body, err := payload.Open(b, payload.KindOption)
	if err != nil {
		return nil, err
	}
	f, err := payload.Parse(body, optionSchema)
	if err != nil {
		return nil, err
	}

	o := &Option{
		StrikePrice:         f.Amount(fieldStrike),
		Expiration:          f.Uint64(fieldExpiration),
		PremiumPaid:         f.Amount(fieldPremium),
		IsCall:              f.Bool(fieldIsCall),
		OptionHolder:        f.Address(fieldHolder),
		OptionSeller:        f.Address(fieldSeller),
		IsExercised:         f.Bool(fieldExercised),
		ImpliedVolatility:   f.Uint64(fieldImpliedVol),
		CreationTime:        f.Uint64(fieldCreationTime),
		UnderlyingOrderHash: f.Hash(fieldOrderHash),
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	o.ID = OptionID(o.UnderlyingOrderHash, o.OptionHolder, o.CreationTime)
	return o, nil
}
