// Package fixedpoint 提供 uint256 语义下的整数定点运算。
// 所有金额均为 decimal.Decimal，约束为 [0, 2^256-1] 内的整数；乘除使用全精度中间值（等价于 512 位 mulDiv）。
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrOutOfRange 数值不在 uint256 范围内或不是整数
var ErrOutOfRange = errors.New("value is not a uint256 integer")

var (
	maxUint256Int = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// MaxUint256 2^256-1
	MaxUint256 = decimal.NewFromBigInt(maxUint256Int, 0)
)

// IsUint256 判断是否为 [0, 2^256-1] 范围内的整数
func IsUint256(d decimal.Decimal) bool {
	if d.IsNegative() || !d.IsInteger() {
		return false
	}
	return d.BigInt().Cmp(maxUint256Int) <= 0
}

// FromUint64 无损转换 uint64
func FromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// ToUint64 转换为 uint64，超出范围时 ok=false
func ToUint64(d decimal.Decimal) (uint64, bool) {
	if d.IsNegative() || !d.IsInteger() {
		return 0, false
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

// MulDiv 计算 floor(a*b/denominator)，denominator 为 0 时 panic（由上游校验保证非零）
func MulDiv(a, b, denominator decimal.Decimal) decimal.Decimal {
	d := denominator.BigInt()
	if d.Sign() == 0 {
		panic("fixedpoint: division by zero")
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return decimal.NewFromBigInt(p.Quo(p, d), 0)
}

// MulDivCeil 计算 ceil(a*b/denominator)
func MulDivCeil(a, b, denominator decimal.Decimal) decimal.Decimal {
	d := denominator.BigInt()
	if d.Sign() == 0 {
		panic("fixedpoint: division by zero")
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q, r := new(big.Int).QuoRem(p, d, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return decimal.NewFromBigInt(q, 0)
}

// Div 整数除法 floor(a/b)
func Div(a, b decimal.Decimal) decimal.Decimal {
	return MulDiv(a, decimal.NewFromInt(1), b)
}

// SubFloor 饱和减法，结果不低于 0
func SubFloor(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThanOrEqual(b) {
		return decimal.Zero
	}
	return a.Sub(b)
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Bytes 返回最小长度的大端编码，0 编码为空切片
func Bytes(d decimal.Decimal) ([]byte, error) {
	if !IsUint256(d) {
		return nil, ErrOutOfRange
	}
	return d.BigInt().Bytes(), nil
}

// FromBytes 从大端字节解码，长度不得超过 32
func FromBytes(b []byte) (decimal.Decimal, error) {
	if len(b) > 32 {
		return decimal.Zero, ErrOutOfRange
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(b), 0), nil
}
