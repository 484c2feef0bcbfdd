package crypto_util

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Keccak256 计算输入的 Keccak256 哈希值（以太坊使用的哈希算法）
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// Fingerprint 返回文档内容的 Blake3 摘要，用于在多个签名人之间核对拿到的是同一份批次文件
func Fingerprint(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortFingerprint is the first 8 bytes of Fingerprint, enough to compare by eye.
func ShortFingerprint(data []byte) string {
	return Fingerprint(data)[:16]
}
