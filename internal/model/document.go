package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// JSON keys shared with the signing and broadcast tooling.
const (
	keyTransactions      = "transactions"
	keyTransaction       = "transaction"
	keySafeTx            = "safeTx"
	keySafeTxHash        = "safeTxHash"
	keySignatures        = "signatures"
	keyThreshold         = "threshold"
	keyCollatedSignature = "collated-signature"

	keyFrom    = "from"
	keyTo      = "to"
	keyValue   = "value"
	keyInput   = "input"
	keyNonce   = "nonce"
	keyChainID = "chainId"
)

// rawObject keeps every field of a JSON object so that fields this tool does not
// understand are written back untouched.
type rawObject map[string]json.RawMessage

func (o rawObject) decode(key string, v any) (bool, error) {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("field %q: %w", key, err)
	}
	return true, nil
}

func (o rawObject) set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	o[key] = b
	return nil
}

func (o rawObject) clone() rawObject {
	out := make(rawObject, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// TxFields is the "transaction" object of a foundry broadcast entry.
type TxFields struct {
	From    *common.Address
	To      *common.Address
	Value   *Quantity
	Input   *hexutil.Bytes
	Nonce   *Quantity
	ChainID *Quantity

	raw rawObject
}

func (t *TxFields) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &t.raw); err != nil {
		return err
	}
	fields := []struct {
		key string
		dst any
	}{
		{keyFrom, &t.From},
		{keyTo, &t.To},
		{keyValue, &t.Value},
		{keyInput, &t.Input},
		{keyNonce, &t.Nonce},
		{keyChainID, &t.ChainID},
	}
	for _, f := range fields {
		if _, err := t.raw.decode(f.key, f.dst); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes the original object; the nonce is the only field the pipeline rewrites.
func (t TxFields) MarshalJSON() ([]byte, error) {
	out := t.raw.clone()
	if t.Nonce != nil {
		if err := out.set(keyNonce, t.Nonce); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// BatchEntry is one element of "transactions", at any stage of the pipeline.
type BatchEntry struct {
	Transaction       TxFields
	SafeTx            *safetx.Preimage
	SafeTxHash        *common.Hash
	Signatures        []SignatureSlot
	Threshold         *Quantity
	CollatedSignature *hexutil.Bytes

	raw rawObject
}

func (e *BatchEntry) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.raw); err != nil {
		return err
	}
	fields := []struct {
		key string
		dst any
	}{
		{keyTransaction, &e.Transaction},
		{keySafeTx, &e.SafeTx},
		{keySafeTxHash, &e.SafeTxHash},
		{keySignatures, &e.Signatures},
		{keyThreshold, &e.Threshold},
		{keyCollatedSignature, &e.CollatedSignature},
	}
	for _, f := range fields {
		if _, err := e.raw.decode(f.key, f.dst); err != nil {
			return err
		}
	}
	return nil
}

func (e BatchEntry) MarshalJSON() ([]byte, error) {
	out := e.raw.clone()
	if out == nil {
		out = rawObject{}
	}
	if err := out.set(keyTransaction, e.Transaction); err != nil {
		return nil, err
	}
	if e.SafeTx != nil {
		if err := out.set(keySafeTx, e.SafeTx); err != nil {
			return nil, err
		}
	}
	if e.SafeTxHash != nil {
		if err := out.set(keySafeTxHash, e.SafeTxHash); err != nil {
			return nil, err
		}
	}
	if e.Signatures != nil {
		if err := out.set(keySignatures, e.Signatures); err != nil {
			return nil, err
		}
	}
	if e.Threshold != nil {
		if err := out.set(keyThreshold, e.Threshold); err != nil {
			return nil, err
		}
	}
	// 未达到阈值时不能残留旧的 collated-signature
	delete(out, keyCollatedSignature)
	if e.CollatedSignature != nil && len(*e.CollatedSignature) > 0 {
		if err := out.set(keyCollatedSignature, e.CollatedSignature); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// BroadcastBatch is the whole document: the foundry broadcast file, extended in place by each stage.
type BroadcastBatch struct {
	Transactions []*BatchEntry

	raw rawObject
}

func (b *BroadcastBatch) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &b.raw); err != nil {
		return err
	}
	if _, err := b.raw.decode(keyTransactions, &b.Transactions); err != nil {
		return err
	}
	for i, e := range b.Transactions {
		if e == nil {
			return fmt.Errorf("transactions[%d] is null", i)
		}
	}
	return nil
}

func (b BroadcastBatch) MarshalJSON() ([]byte, error) {
	out := b.raw.clone()
	if out == nil {
		out = rawObject{}
	}
	txs := b.Transactions
	if txs == nil {
		txs = []*BatchEntry{}
	}
	if err := out.set(keyTransactions, txs); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// ParseBatch decodes a batch document; structural failures are ErrMalformedBatch.
func ParseBatch(data []byte) (*BroadcastBatch, error) {
	var b BroadcastBatch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errno.Wrap(errno.ErrMalformedBatch, err, "decode batch")
	}
	return &b, nil
}

// Proposed extracts the proposed transactions, failing fast on missing fields.
func (b *BroadcastBatch) Proposed() ([]ProposedTransaction, error) {
	out := make([]ProposedTransaction, 0, len(b.Transactions))
	for i, e := range b.Transactions {
		t := e.Transaction
		switch {
		case t.raw == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q", i, keyTransaction)
		case t.From == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q", i, keyFrom)
		case t.To == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q (contract creation is not a Safe call)", i, keyTo)
		case t.ChainID == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q", i, keyChainID)
		}

		value := big.NewInt(0)
		if t.Value != nil {
			value = t.Value.Big()
		}
		var data []byte
		if t.Input != nil {
			data = append([]byte{}, (*t.Input)...)
		}
		out = append(out, ProposedTransaction{
			From:    *t.From,
			To:      *t.To,
			Value:   value,
			Data:    data,
			ChainID: t.ChainID.Big(),
		})
	}
	return out, nil
}

// ApplyExtended writes the extension results into the document, entry by entry.
func (b *BroadcastBatch) ApplyExtended(txs []ExtendedTransaction) error {
	if len(txs) != len(b.Transactions) {
		return errno.New(errno.ErrMalformedBatch, "%d results for %d transactions", len(txs), len(b.Transactions))
	}
	for i := range txs {
		e, tx := b.Transactions[i], txs[i]
		hash := tx.SafeTxHash
		e.Transaction.Nonce = NewQuantity(tx.Nonce)
		e.SafeTx = tx.SafeTx
		e.SafeTxHash = &hash
		e.Signatures = append([]SignatureSlot{}, tx.Signatures...)
		e.Threshold = NewQuantity(tx.Threshold)
		e.CollatedSignature = nil
	}
	return nil
}

// Extended reads back extended (and possibly signed) transactions.
func (b *BroadcastBatch) Extended() ([]ExtendedTransaction, error) {
	proposed, err := b.Proposed()
	if err != nil {
		return nil, err
	}
	out := make([]ExtendedTransaction, 0, len(proposed))
	for i, e := range b.Transactions {
		switch {
		case e.SafeTxHash == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q, run extend first", i, keySafeTxHash)
		case e.Threshold == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q", i, keyThreshold)
		case e.Transaction.Nonce == nil:
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing %q", i, keyNonce)
		}
		nonce := e.Transaction.Nonce.Big()
		threshold := e.Threshold.Big()
		if !nonce.IsUint64() || !threshold.IsUint64() {
			return nil, errno.New(errno.ErrMalformedBatch, "transactions[%d]: nonce or threshold out of range", i)
		}
		out = append(out, ExtendedTransaction{
			ProposedTransaction: proposed[i],
			Nonce:               nonce.Uint64(),
			SafeTx:              e.SafeTx,
			SafeTxHash:          *e.SafeTxHash,
			Signatures:          append([]SignatureSlot{}, e.Signatures...),
			Threshold:           threshold.Uint64(),
		})
	}
	return out, nil
}

// ApplySignatures writes filled signature slots back into the document.
func (b *BroadcastBatch) ApplySignatures(txs []ExtendedTransaction) error {
	if len(txs) != len(b.Transactions) {
		return errno.New(errno.ErrMalformedBatch, "%d results for %d transactions", len(txs), len(b.Transactions))
	}
	for i := range txs {
		b.Transactions[i].Signatures = append([]SignatureSlot{}, txs[i].Signatures...)
	}
	return nil
}

// ApplyCollated sets or clears "collated-signature" on every entry.
func (b *BroadcastBatch) ApplyCollated(txs []CollatedTransaction) error {
	if len(txs) != len(b.Transactions) {
		return errno.New(errno.ErrMalformedBatch, "%d results for %d transactions", len(txs), len(b.Transactions))
	}
	for i := range txs {
		if !txs[i].Complete() {
			b.Transactions[i].CollatedSignature = nil
			continue
		}
		sig := hexutil.Bytes(append([]byte{}, txs[i].CombinedSignature...))
		b.Transactions[i].CollatedSignature = &sig
	}
	return nil
}

// Collated reads back collated transactions, e.g. for a separate flatten run.
func (b *BroadcastBatch) Collated() ([]CollatedTransaction, error) {
	extended, err := b.Extended()
	if err != nil {
		return nil, err
	}
	out := make([]CollatedTransaction, 0, len(extended))
	for i, tx := range extended {
		c := CollatedTransaction{ExtendedTransaction: tx}
		if sig := b.Transactions[i].CollatedSignature; sig != nil {
			c.CombinedSignature = append([]byte{}, (*sig)...)
		}
		out = append(out, c)
	}
	return out, nil
}
