// Package payload 提供策略负载（strategy payload）的二进制编解码。
// 采用 protobuf wire 格式：外层信封携带版本与类型标签，内层为扁平消息；解码严格，任何结构偏差都视为非法输入。
package payload

import (
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// Version 当前负载格式版本
const Version uint64 = 1

// Kind 负载类型标签
type Kind uint64

const (
	KindVolatility Kind = 1
	KindTWAP       Kind = 2
	KindOption     Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindVolatility:
		return "volatility"
	case KindTWAP:
		return "twap"
	case KindOption:
		return "option"
	}
	return fmt.Sprintf("kind(%d)", uint64(k))
}

const (
	envelopeVersion protowire.Number = 1
	envelopeKind    protowire.Number = 2
	envelopeBody    protowire.Number = 3
)

var envelopeSchema = Schema{
	envelopeVersion: protowire.VarintType,
	envelopeKind:    protowire.VarintType,
	envelopeBody:    protowire.BytesType,
}

// Seal 封装信封
func Seal(kind Kind, body []byte) []byte {
	var e Encoder
	e.Uint64(envelopeVersion, Version)
	e.Uint64(envelopeKind, uint64(kind))
	e.Raw(envelopeBody, body)
	return e.Finish()
}

// Open 校验信封版本与类型并返回消息体
func Open(b []byte, want Kind) ([]byte, error) {
	f, err := Parse(b, envelopeSchema)
	if err != nil {
		return nil, err
	}
	if v := f.Uint64(envelopeVersion); v != Version {
		return nil, invalid("unsupported version %d", v)
	}
	if k := Kind(f.Uint64(envelopeKind)); k != want {
		return nil, invalid("payload kind %s, want %s", k, want)
	}
	return f.Raw(envelopeBody), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", protocol.ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// Schema 字段号到 wire 类型的映射，所有字段均为必填
type Schema map[protowire.Number]protowire.Type

// Encoder 顺序写入字段
type Encoder struct {
	buf []byte
	err error
}

func (e *Encoder) Uint64(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *Encoder) Bool(num protowire.Number, v bool) {
	e.Uint64(num, protowire.EncodeBool(v))
}

func (e *Encoder) Raw(num protowire.Number, v []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

// Amount 写入 uint256 金额（最小长度大端编码）
func (e *Encoder) Amount(num protowire.Number, v decimal.Decimal) {
	b, err := fixedpoint.Bytes(v)
	if err != nil {
		if e.err == nil {
			e.err = fmt.Errorf("%w: field %d: %v", protocol.ErrInvalidAmount, num, err)
		}
		return
	}
	e.Raw(num, b)
}

// Err 返回编码期间的第一个错误
func (e *Encoder) Err() error { return e.err }

// Finish 返回编码结果
func (e *Encoder) Finish() []byte { return e.buf }

type fieldValue struct {
	varint uint64
	bytes  []byte
}

// Fields 解析后的字段集合。读取方法记录第一个错误，调用方最后检查 Err。
type Fields struct {
	values map[protowire.Number]fieldValue
	err    error
}

// Parse 按 schema 严格解析消息：拒绝未知字段、重复字段、类型不符、缺失字段与截断输入
func Parse(b []byte, schema Schema) (*Fields, error) {
	f := &Fields{values: make(map[protowire.Number]fieldValue, len(schema))}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, invalid("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		want, ok := schema[num]
		if !ok {
			return nil, invalid("unknown field %d", num)
		}
		if typ != want {
			return nil, invalid("field %d has wire type %d, want %d", num, typ, want)
		}
		if _, dup := f.values[num]; dup {
			return nil, invalid("duplicate field %d", num)
		}

		var v fieldValue
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(b)
		default:
			return nil, invalid("field %d uses unsupported wire type %d", num, typ)
		}
		if n < 0 {
			return nil, invalid("field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
		f.values[num] = v
	}

	for num := range schema {
		if _, ok := f.values[num]; !ok {
			return nil, invalid("missing field %d", num)
		}
	}
	return f, nil
}

func (f *Fields) fail(num protowire.Number, format string, args ...any) {
	if f.err == nil {
		f.err = invalid("field %d: %s", num, fmt.Sprintf(format, args...))
	}
}

// Err 返回读取期间的第一个错误
func (f *Fields) Err() error { return f.err }

func (f *Fields) Uint64(num protowire.Number) uint64 { return f.values[num].varint }

func (f *Fields) Raw(num protowire.Number) []byte { return f.values[num].bytes }

func (f *Fields) Bool(num protowire.Number) bool {
	v := f.values[num].varint
	if v > 1 {
		f.fail(num, "invalid bool %d", v)
		return false
	}
	return protowire.DecodeBool(v)
}

func (f *Fields) Amount(num protowire.Number) decimal.Decimal {
	b := f.values[num].bytes
	// 最小长度编码：前导零字节说明编码不规范，拒绝以保证往返一致
	if len(b) > 0 && b[0] == 0 {
		f.fail(num, "non-canonical amount encoding")
		return decimal.Zero
	}
	v, err := fixedpoint.FromBytes(b)
	if err != nil {
		f.fail(num, "amount exceeds 32 bytes")
		return decimal.Zero
	}
	return v
}

func (f *Fields) Address(num protowire.Number) protocol.Address {
	var a protocol.Address
	b := f.values[num].bytes
	if len(b) != len(a) {
		f.fail(num, "address must be %d bytes, got %d", len(a), len(b))
		return a
	}
	copy(a[:], b)
	return a
}

func (f *Fields) Hash(num protowire.Number) protocol.Hash {
	var h protocol.Hash
	b := f.values[num].bytes
	if len(b) != len(h) {
		f.fail(num, "hash must be %d bytes, got %d", len(h), len(b))
		return h
	}
	copy(h[:], b)
	return h
}
