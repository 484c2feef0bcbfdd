package safetx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the Safe EIP-712 domain. Safe versions before 1.3.0 omit the chain id.
type Domain struct {
	ChainID           *math.HexOrDecimal256 `json:"chainId,omitempty"`
	VerifyingContract string                `json:"verifyingContract"`
}

// Preimage is the "safeTx" document handed to signers.
// It is the eth_signTypedData_v4 payload, so external tools can sign it verbatim.
type Preimage struct {
	Types       apitypes.Types            `json:"types"`
	PrimaryType string                    `json:"primaryType"`
	Domain      Domain                    `json:"domain"`
	Message     apitypes.TypedDataMessage `json:"message"`
}

// TypedData converts the pre-image to go-ethereum's typed data representation.
func (p *Preimage) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types:       p.Types,
		PrimaryType: p.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			ChainId:           p.Domain.ChainID,
			VerifyingContract: p.Domain.VerifyingContract,
		},
		Message: p.Message,
	}
}

// Hash computes keccak256(0x1901 ‖ domainSeparator ‖ hashStruct(message)).
func (p *Preimage) Hash() (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(p.TypedData())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash safe tx: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// Nonce reads the Safe nonce the pre-image commits to.
func (p *Preimage) Nonce() (uint64, error) {
	n, err := messageInt(p.Message["nonce"])
	if err != nil {
		return 0, fmt.Errorf("safe tx nonce: %w", err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("safe tx nonce %s out of range", n)
	}
	return n.Uint64(), nil
}

// Safe returns the verifying contract of the domain.
func (p *Preimage) Safe() common.Address {
	return common.HexToAddress(p.Domain.VerifyingContract)
}

// Version returns a Safe version whose type set matches the pre-image's.
// Versions with the same type set hash identically, so the exact release is not recoverable.
func (p *Preimage) Version() string {
	if hasField(p.Types[PrimaryType], "dataGas") {
		return "0.1.0"
	}
	if !hasField(p.Types["EIP712Domain"], "chainId") {
		return "1.0.0"
	}
	return DefaultVersion
}

func hasField(fields []apitypes.Type, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func messageInt(v any) (*big.Int, error) {
	switch t := v.(type) {
	case string:
		n, ok := math.ParseBig256(t)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", t)
		}
		return n, nil
	case float64:
		// JSON 数字在 TypedDataMessage 中解码为 float64
		n, acc := new(big.Float).SetFloat64(t).Int(nil)
		if acc != big.Exact {
			return nil, fmt.Errorf("invalid integer %v", t)
		}
		return n, nil
	case *big.Int:
		return t, nil
	case nil:
		return nil, fmt.Errorf("missing")
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
