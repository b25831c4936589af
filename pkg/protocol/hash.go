package protocol

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Keccak256 计算多段数据拼接后的 Keccak-256 哈希（与链上 keccak256(abi.encodePacked(...)) 一致）
func Keccak256(parts ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// Uint256Word 将 uint64 编码为 32 字节大端字
func Uint256Word(v uint64) []byte {
	word := make([]byte, 32)
	binary.BigEndian.PutUint64(word[24:], v)
	return word
}
