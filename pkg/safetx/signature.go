package safetx

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureType distinguishes how an owner produced its signature.
type SignatureType uint8

const (
	// EOA signs the safeTxHash directly (eth_signTypedData), v = 27/28.
	EOA SignatureType = iota
	// EthSign signs the safeTxHash with the "\x19Ethereum Signed Message" prefix, v = 31/32.
	EthSign
)

func (t SignatureType) String() string {
	switch t {
	case EOA:
		return "eoa"
	case EthSign:
		return "eth_sign"
	default:
		return "unknown"
	}
}

// Signature is a 65-byte r ‖ s ‖ v owner signature in Safe encoding.
type Signature struct {
	raw  [crypto.SignatureLength]byte
	Type SignatureType
}

// ParseSignature decodes a hex signature as written by signing tools.
// A recovery id of 0/1 is normalized to 27/28.
func ParseSignature(s string) (*Signature, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty signature")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(b) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature length %d, want %d", len(b), crypto.SignatureLength)
	}

	sig := &Signature{}
	copy(sig.raw[:], b)
	v := sig.raw[crypto.RecoveryIDOffset]
	switch {
	case v == 0 || v == 1:
		sig.raw[crypto.RecoveryIDOffset] = v + 27
		sig.Type = EOA
	case v == 27 || v == 28:
		sig.Type = EOA
	case v == 31 || v == 32:
		sig.Type = EthSign
	default:
		return nil, fmt.Errorf("unsupported signature v=%d", v)
	}
	return sig, nil
}

// Bytes returns the on-chain encoding.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, crypto.SignatureLength)
	copy(out, sig.raw[:])
	return out
}

// Hex returns the 0x-prefixed lowercase encoding.
func (sig *Signature) Hex() string {
	return hexutil.Encode(sig.raw[:])
}

// Recover returns the address that produced sig over safeTxHash.
func (sig *Signature) Recover(safeTxHash common.Hash) (common.Address, error) {
	digest := safeTxHash.Bytes()
	recID := sig.raw[crypto.RecoveryIDOffset] - 27
	if sig.Type == EthSign {
		digest = accounts.TextHash(digest)
		recID = sig.raw[crypto.RecoveryIDOffset] - 31
	}

	r := new(big.Int).SetBytes(sig.raw[:32])
	s := new(big.Int).SetBytes(sig.raw[32:64])
	// Safe 使用 ecrecover，不要求 low-s
	if !crypto.ValidateSignatureValues(recID, r, s, false) {
		return common.Address{}, fmt.Errorf("signature values out of range")
	}

	rsv := make([]byte, crypto.SignatureLength)
	copy(rsv, sig.raw[:64])
	rsv[crypto.RecoveryIDOffset] = recID

	pub, err := crypto.SigToPub(digest, rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// OwnerSignature pairs a validated signature with the owner it recovered to.
type OwnerSignature struct {
	Owner     common.Address
	Signature *Signature
}

// SortByOwner orders signatures by strictly ascending owner address, as Safe.checkNSignatures requires.
func SortByOwner(sigs []OwnerSignature) {
	sort.SliceStable(sigs, func(i, j int) bool {
		return bytes.Compare(sigs[i].Owner.Bytes(), sigs[j].Owner.Bytes()) < 0
	})
}

// EncodeSignatures concatenates signatures sorted by owner. The input slice is not modified.
func EncodeSignatures(sigs []OwnerSignature) []byte {
	sorted := make([]OwnerSignature, len(sigs))
	copy(sorted, sigs)
	SortByOwner(sorted)

	out := make([]byte, 0, len(sorted)*crypto.SignatureLength)
	for _, s := range sorted {
		out = append(out, s.Signature.raw[:]...)
	}
	return out
}
