package domain

import (
	"google.golang.org/protobuf/encoding/protowire"

	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/payload"
)

const (
	fieldStartTime     protowire.Number = 1
	fieldDuration      protowire.Number = 2
	fieldIntervals     protowire.Number = 3
	fieldBaseInterval  protowire.Number = 4
	fieldLastExecution protowire.Number = 5
	fieldExecuted      protowire.Number = 6
	fieldRandomize     protowire.Number = 7
	fieldAdaptive      protowire.Number = 8
	fieldSnapshot      protowire.Number = 9
)

var payloadSchema = payload.Schema{
	fieldStartTime:     protowire.VarintType,
	fieldDuration:      protowire.VarintType,
	fieldIntervals:     protowire.VarintType,
	fieldBaseInterval:  protowire.VarintType,
	fieldLastExecution: protowire.VarintType,
	fieldExecuted:      protowire.BytesType,
	fieldRandomize:     protowire.VarintType,
	fieldAdaptive:      protowire.VarintType,
	fieldSnapshot:      protowire.BytesType,
}

// Payload TWAP 策略负载：调度参数加波动率快照
type Payload struct {
	Schedule Schedule           `json:"schedule"`
	Snapshot voldomain.Snapshot `json:"snapshot"`
}

// EncodePayload 编码 TWAP 负载
func EncodePayload(p *Payload) ([]byte, error) {
	snap, err := voldomain.EncodeSnapshotBody(&p.Snapshot)
	if err != nil {
		return nil, err
	}

	s := &p.Schedule
	var e payload.Encoder
	e.Uint64(fieldStartTime, s.StartTime)
	e.Uint64(fieldDuration, s.Duration)
	e.Uint64(fieldIntervals, s.Intervals)
	e.Uint64(fieldBaseInterval, s.BaseInterval)
	e.Uint64(fieldLastExecution, s.LastExecutionTime)
	e.Amount(fieldExecuted, s.ExecutedAmount)
	e.Bool(fieldRandomize, s.RandomizeExecution)
	e.Bool(fieldAdaptive, s.AdaptiveIntervals)
	e.Raw(fieldSnapshot, snap)
	if err := e.Err(); err != nil {
		return nil, err
	}
	return payload.Seal(payload.KindTWAP, e.Finish()), nil
}

// DecodePayload 解码 TWAP 负载
func DecodePayload(b []byte) (*Payload, error) {
	body, err := payload.Open(b, payload.KindTWAP)
	if err != nil {
		return nil, err
	}
	f, err := payload.Parse(body, payloadSchema)
	if err != nil {
		return nil, err
	}

	p := &Payload{Schedule: Schedule{
		StartTime:          f.Uint64(fieldStartTime),
		Duration:           f.Uint64(fieldDuration),
		Intervals:          f.Uint64(fieldIntervals),
		BaseInterval:       f.Uint64(fieldBaseInterval),
		LastExecutionTime:  f.Uint64(fieldLastExecution),
		ExecutedAmount:     f.Amount(fieldExecuted),
		RandomizeExecution: f.Bool(fieldRandomize),
		AdaptiveIntervals:  f.Bool(fieldAdaptive),
	}}
	if err := f.Err(); err != nil {
		return nil, err
	}

	snap, err := voldomain.DecodeSnapshotBody(f.Raw(fieldSnapshot))
	if err != nil {
		return nil, err
	}
	p.Snapshot = *snap
	return p, nil
}
