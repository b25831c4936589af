// Package protocol 定义限价单协议边界上的共享类型：地址、哈希、订单、金额计算接口与合约常量
package protocol

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
)

// Address 20 字节账户地址
type Address [20]byte

// Hash 32 字节哈希
type Hash [32]byte

// ParseAddress 解析 0x 前缀的十六进制地址
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s, len(a))
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// ParseHash 解析 0x 前缀的十六进制哈希
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex(s, len(h))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}

func (a Address) Hex() string    { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string { return a.Hex() }
func (a Address) IsZero() bool   { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool   { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Order 协议限价单（外部只读输入，签名与哈希由撮合层负责）
type Order struct {
	Salt         decimal.Decimal `json:"salt"`
	Maker        Address         `json:"maker"`
	Receiver     Address         `json:"receiver"`
	MakerAsset   Address         `json:"maker_asset"`
	TakerAsset   Address         `json:"taker_asset"`
	MakingAmount decimal.Decimal `json:"making_amount"`
	TakingAmount decimal.Decimal `json:"taking_amount"`
	MakerTraits  decimal.Decimal `json:"maker_traits"`
}

// Validate 校验订单金额：两侧金额均需为正的 uint256 整数
func (o *Order) Validate() error {
	if o == nil {
		return ErrInvalidOrder
	}
	if !fixedpoint.IsUint256(o.MakingAmount) || !o.MakingAmount.IsPositive() {
		return ErrInvalidOrder
	}
	if !fixedpoint.IsUint256(o.TakingAmount) || !o.TakingAmount.IsPositive() {
		return ErrInvalidOrder
	}
	return nil
}

// AmountSource 金额计算器能力接口，由结算引擎在每次成交尝试时调用。
// 返回 0 表示“当前不执行”，属于正常结果而非错误。
type AmountSource interface {
	// GetMakingAmount 根据请求的 taking 数量计算允许成交的 making 数量
	GetMakingAmount(ctx context.Context, order *Order, orderHash Hash, taker Address, takingAmount, remainingMakingAmount decimal.Decimal, payload []byte) (decimal.Decimal, error)
	// GetTakingAmount 根据请求的 making 数量计算对应的 taking 数量
	GetTakingAmount(ctx context.Context, order *Order, orderHash Hash, taker Address, makingAmount, remainingMakingAmount decimal.Decimal, payload []byte) (decimal.Decimal, error)
}

// CheckAmounts 校验调用方传入的金额均为 uint256 整数
func CheckAmounts(amounts ...decimal.Decimal) error {
	for _, a := range amounts {
		if !fixedpoint.IsUint256(a) {
			return ErrInvalidAmount
		}
	}
	return nil
}
