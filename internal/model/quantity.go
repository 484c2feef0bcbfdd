package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Quantity is a non-negative integer written as a hex string ("0x1a", "1a") or a JSON number.
// Foundry broadcasts and Safe metadata use hex strings; hex is always written back.
type Quantity big.Int

func NewQuantity(v uint64) *Quantity {
	return (*Quantity)(new(big.Int).SetUint64(v))
}

func (q *Quantity) Big() *big.Int {
	if q == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(q))
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := ParseHexBig(s)
		if err != nil {
			return err
		}
		*q = Quantity(*n)
		return nil
	}

	n, ok := new(big.Int).SetString(string(data), 10)
	if !ok || n.Sign() < 0 {
		return fmt.Errorf("invalid quantity %s", data)
	}
	*q = Quantity(*n)
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	n := big.Int(q)
	return json.Marshal(hexutil.EncodeBig(&n))
}

// ParseHexBig parses a hex integer with or without the 0x prefix.
func ParseHexBig(s string) (*big.Int, error) {
	body := trimHexPrefix(strings.TrimSpace(s))
	if body == "" {
		return nil, fmt.Errorf("empty hex integer %q", s)
	}
	n, ok := new(big.Int).SetString(body, 16)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid hex integer %q", s)
	}
	return n, nil
}

// ParseHexUint64 parses a hex integer with or without the 0x prefix.
func ParseHexUint64(s string) (uint64, error) {
	body := trimHexPrefix(strings.TrimSpace(s))
	if body == "" {
		return 0, fmt.Errorf("empty hex integer %q", s)
	}
	v, err := strconv.ParseUint(body, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex integer %q", s)
	}
	return v, nil
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
