// Package safetx builds the EIP-712 typed data a Safe contract verifies owner signatures against.
package safetx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/mod/semver"
)

// Operation is the Safe execution kind.
type Operation uint8

const (
	Call         Operation = 0
	DelegateCall Operation = 1
)

const (
	PrimaryType    = "SafeTx"
	DefaultVersion = "1.4.1"
)

// LayoutVersions holds one version per distinct Safe type set, newest first.
var LayoutVersions = []string{DefaultVersion, "1.0.0", "0.1.0"}

// Tx mirrors the arguments of Safe.execTransaction that are covered by the owner signatures.
type Tx struct {
	Safe           common.Address
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          uint64
	ChainID        *big.Int
	Version        string
}

// ValidVersion reports whether v is a Safe contract version such as "1.4.1".
func ValidVersion(v string) bool {
	return semver.IsValid(canonicalVersion(v))
}

func canonicalVersion(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}

// versionBelow 比较 Safe 合约版本，例如 versionBelow("1.1.1", "1.3.0") == true
func versionBelow(v, bound string) bool {
	return semver.Compare(canonicalVersion(v), canonicalVersion(bound)) < 0
}

// domainHasChainID: Safe >= 1.3.0 的 domain separator 包含 chainId
func domainHasChainID(version string) bool {
	return !versionBelow(version, "1.3.0")
}

// gasFieldName: Safe < 1.0.0 把 baseGas 称为 dataGas
func gasFieldName(version string) string {
	if versionBelow(version, "1.0.0") {
		return "dataGas"
	}
	return "baseGas"
}

// Types returns the EIP-712 type set of a Safe version.
func Types(version string) apitypes.Types {
	domain := []apitypes.Type{{Name: "verifyingContract", Type: "address"}}
	if domainHasChainID(version) {
		domain = append([]apitypes.Type{{Name: "chainId", Type: "uint256"}}, domain...)
	}
	return apitypes.Types{
		"EIP712Domain": domain,
		PrimaryType: {
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "data", Type: "bytes"},
			{Name: "operation", Type: "uint8"},
			{Name: "safeTxGas", Type: "uint256"},
			{Name: gasFieldName(version), Type: "uint256"},
			{Name: "gasPrice", Type: "uint256"},
			{Name: "gasToken", Type: "address"},
			{Name: "refundReceiver", Type: "address"},
			{Name: "nonce", Type: "uint256"},
		},
	}
}

// Preimage builds the structured pre-image of the Safe transaction hash.
func (tx *Tx) Preimage() (*Preimage, error) {
	version := tx.Version
	if version == "" {
		version = DefaultVersion
	}
	if !ValidVersion(version) {
		return nil, fmt.Errorf("invalid safe version %q", version)
	}

	domain := Domain{VerifyingContract: tx.Safe.Hex()}
	if domainHasChainID(version) {
		if tx.ChainID == nil || tx.ChainID.Sign() < 0 {
			return nil, fmt.Errorf("safe %s requires a non-negative chain id", version)
		}
		domain.ChainID = (*math.HexOrDecimal256)(new(big.Int).Set(tx.ChainID))
	}

	return &Preimage{
		Types:       Types(version),
		PrimaryType: PrimaryType,
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"to":                  tx.To.Hex(),
			"value":               decimalString(tx.Value),
			"data":                hexutil.Encode(nonNil(tx.Data)),
			"operation":           fmt.Sprintf("%d", tx.Operation),
			"safeTxGas":           decimalString(tx.SafeTxGas),
			gasFieldName(version): decimalString(tx.BaseGas),
			"gasPrice":            decimalString(tx.GasPrice),
			"gasToken":            tx.GasToken.Hex(),
			"refundReceiver":      tx.RefundReceiver.Hex(),
			"nonce":               fmt.Sprintf("%d", tx.Nonce),
		},
	}, nil
}

// Hash returns the safeTxHash owners sign.
func (tx *Tx) Hash() (common.Hash, error) {
	p, err := tx.Preimage()
	if err != nil {
		return common.Hash{}, err
	}
	return p.Hash()
}

func decimalString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
