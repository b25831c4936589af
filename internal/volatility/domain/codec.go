package domain

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wyfcoding/vectorplus/pkg/payload"
)

const (
	fieldBaseline     protowire.Number = 1
	fieldCurrent      protowire.Number = 2
	fieldThreshold    protowire.Number = 3
	fieldEmergency    protowire.Number = 4
	fieldMaxExecution protowire.Number = 5
	fieldMinExecution protowire.Number = 6
	fieldLastUpdate   protowire.Number = 7
	fieldConservative protowire.Number = 8
)

var snapshotSchema = payload.Schema{
	fieldBaseline:     protowire.VarintType,
	fieldCurrent:      protowire.VarintType,
	fieldThreshold:    protowire.VarintType,
	fieldEmergency:    protowire.VarintType,
	fieldMaxExecution: protowire.BytesType,
	fieldMinExecution: protowire.BytesType,
	fieldLastUpdate:   protowire.VarintType,
	fieldConservative: protowire.VarintType,
}

// EncodeSnapshotBody 编码快照消息体（不含信封），供组合负载嵌套使用
func EncodeSnapshotBody(s *Snapshot) ([]byte, error) {
	var e payload.Encoder
	e.Uint64(fieldBaseline, s.BaselineVolatility)
	e.Uint64(fieldCurrent, s.CurrentVolatility)
	e.Uint64(fieldThreshold, s.VolatilityThreshold)
	e.Uint64(fieldEmergency, s.EmergencyThreshold)
	e.Amount(fieldMaxExecution, s.MaxExecutionSize)
	e.Amount(fieldMinExecution, s.MinExecutionSize)
	e.Uint64(fieldLastUpdate, s.LastUpdateTime)
	e.Bool(fieldConservative, s.ConservativeMode)
	if err := e.Err(); err != nil {
		return nil, err
	}
	return e.Finish(), nil
}

// DecodeSnapshotBody 解码快照消息体
func DecodeSnapshotBody(b []byte) (*Snapshot, error) {
	f, err := payload.Parse(b, snapshotSchema)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		BaselineVolatility:  f.Uint64(fieldBaseline),
		CurrentVolatility:   f.Uint64(fieldCurrent),
		VolatilityThreshold: f.Uint64(fieldThreshold),
		EmergencyThreshold:  f.Uint64(fieldEmergency),
		MaxExecutionSize:    f.Amount(fieldMaxExecution),
		MinExecutionSize:    f.Amount(fieldMinExecution),
		LastUpdateTime:      f.Uint64(fieldLastUpdate),
		ConservativeMode:    f.Bool(fieldConservative),
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeSnapshot 编码为完整策略负载
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	body, err := EncodeSnapshotBody(s)
	if err != nil {
		return nil, err
	}
	return payload.Seal(payload.KindVolatility, body), nil
}

// DecodeSnapshot 从完整策略负载解码
func DecodeSnapshot(b []byte) (*Snapshot, error) {
	body, err := payload.Open(b, payload.KindVolatility)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshotBody(body)
}
