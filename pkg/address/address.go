package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidHex      = errors.New("not a 20-byte hex address")
	ErrInvalidChecksum = errors.New("EIP-55 checksum mismatch")
)

// Parse 解析以太坊地址。
// 全小写或全大写的地址没有校验和信息，直接接受；
// 大小写混合的地址必须符合 EIP-55 校验和。
func Parse(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q: %w", s, ErrInvalidHex)
	}
	addr := common.HexToAddress(s)

	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if isMixedCase(body) && "0x"+body != addr.Hex() {
		return common.Address{}, fmt.Errorf("%q: %w (want %s)", s, ErrInvalidChecksum, addr.Hex())
	}
	return addr, nil
}

// Checksum 返回 EIP-55 格式的地址字符串。
func Checksum(addr common.Address) string {
	return addr.Hex()
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
