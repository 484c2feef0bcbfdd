package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"safe-ledger/pkg/address"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ProposedTransaction is one call of the dry-run batch, issued by a Safe.
type ProposedTransaction struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	Data    []byte
	ChainID *big.Int
}

// SafeTransaction is the call a Safe executes for p: a plain CALL without gas refund.
func (p ProposedTransaction) SafeTransaction(nonce uint64, version string) *safetx.Tx {
	value := p.Value
	if value == nil {
		value = big.NewInt(0)
	}
	return &safetx.Tx{
		Safe:      p.From,
		To:        p.To,
		Value:     value,
		Data:      p.Data,
		Operation: safetx.Call,
		SafeTxGas: big.NewInt(0),
		BaseGas:   big.NewInt(0),
		GasPrice:  big.NewInt(0),
		Nonce:     nonce,
		ChainID:   p.ChainID,
		Version:   version,
	}
}

// SignatureSlot is the placeholder an owner's signing tool fills in.
// Signature is kept as written by the tool and only interpreted by the collator.
type SignatureSlot struct {
	Signer    common.Address
	Signature string
}

func (s SignatureSlot) Empty() bool {
	return strings.TrimSpace(s.Signature) == ""
}

type signatureSlotJSON struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// MarshalJSON writes the signer checksummed: signing tools compare it with their own checksummed address.
func (s SignatureSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureSlotJSON{Signer: s.Signer.Hex(), Signature: s.Signature})
}

func (s *SignatureSlot) UnmarshalJSON(data []byte) error {
	var raw signatureSlotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	signer, err := address.Parse(raw.Signer)
	if err != nil {
		return err
	}
	s.Signer = signer
	s.Signature = raw.Signature
	return nil
}

// ExtendedTransaction is a proposed transaction bound to a Safe nonce and ready for signing.
type ExtendedTransaction struct {
	ProposedTransaction
	Nonce      uint64
	SafeTx     *safetx.Preimage
	SafeTxHash common.Hash
	Signatures []SignatureSlot
	Threshold  uint64 // frozen at extension time
}

// VerifyHash checks that SafeTxHash is the hash of this transaction's own fields and nonce.
// A pre-image, when present, must hash to SafeTxHash too and decides the Safe type set;
// without one every known type set is tried.
func (t *ExtendedTransaction) VerifyHash() error {
	if t.SafeTx == nil {
		for _, version := range safetx.LayoutVersions {
			hash, err := t.SafeTransaction(t.Nonce, version).Hash()
			if err == nil && hash == t.SafeTxHash {
				return nil
			}
		}
		return fmt.Errorf("safeTxHash %s does not match the transaction fields", t.SafeTxHash.Hex())
	}

	got, err := t.SafeTx.Hash()
	if err != nil {
		return err
	}
	if got != t.SafeTxHash {
		return fmt.Errorf("pre-image hashes to %s, document says %s", got.Hex(), t.SafeTxHash.Hex())
	}
	want, err := t.SafeTransaction(t.Nonce, t.SafeTx.Version()).Hash()
	if err != nil {
		return err
	}
	if want != t.SafeTxHash {
		return fmt.Errorf("pre-image does not describe the transaction: fields hash to %s, document says %s",
			want.Hex(), t.SafeTxHash.Hex())
	}
	return nil
}

// DroppedSignature records a present signature that did not count towards the threshold.
type DroppedSignature struct {
	Signer common.Address
	Reason string
}

// CollatedTransaction carries the combined signature once the threshold is met.
type CollatedTransaction struct {
	ExtendedTransaction
	CombinedSignature []byte
	Signers           []common.Address // ascending, the order of CombinedSignature
	Dropped           []DroppedSignature
}

func (c *CollatedTransaction) Complete() bool {
	return len(c.CombinedSignature) > 0
}

// FlatTransaction is the submission payload.
type FlatTransaction struct {
	ChainID    *big.Int      `json:"chainId"`
	Data       hexutil.Bytes `json:"data"`
	From       string        `json:"from"`
	Signatures hexutil.Bytes `json:"signatures"`
	To         string        `json:"to"`
	Value      *big.Int      `json:"value"`
}
