// Package collator turns the signature slots filled in by owners into the signature blob
// Safe.execTransaction accepts.
package collator

import (
	"time"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/monitor"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Drop reasons recorded in CollatedTransaction.Dropped.
const (
	ReasonMalformed = "malformed"
	ReasonMismatch  = "signer mismatch"
	ReasonDuplicate = "duplicate signer"
	ReasonNotOwner  = "not an owner"
)

// OwnerLookup returns the owner set of a Safe, e.g. (*registry.Registry).Owners.
type OwnerLookup func(safe common.Address) ([]common.Address, error)

type Collator struct {
	owners OwnerLookup
}

type Option func(*Collator)

// WithOwners drops signatures of slots whose signer is not an owner of the Safe.
// Without it the slot set written at extension time is trusted as the owner set.
func WithOwners(lookup OwnerLookup) Option {
	return func(c *Collator) { c.owners = lookup }
}

func New(opts ...Option) *Collator {
	c := &Collator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collate validates every filled slot and combines the valid signatures of each transaction.
// Invalid signatures are dropped and recorded; only a safeTxHash that does not match the
// transaction fails the batch. The result depends only on the slots, so collating twice gives
// the same output.
func (c *Collator) Collate(txs []model.ExtendedTransaction) ([]model.CollatedTransaction, error) {
	defer monitor.ObserveStage("collate", time.Now())

	owners := make([]map[common.Address]bool, len(txs))
	for i := range txs {
		if err := txs[i].VerifyHash(); err != nil {
			return nil, errno.Wrap(errno.ErrHashMismatch, err, "transactions[%d]", i)
		}
		if c.owners == nil {
			continue
		}
		list, err := c.owners(txs[i].From)
		if err != nil {
			return nil, err
		}
		owners[i] = make(map[common.Address]bool, len(list))
		for _, o := range list {
			owners[i][o] = true
		}
	}

	out := make([]model.CollatedTransaction, 0, len(txs))
	for i, tx := range txs {
		collated := collate(tx, owners[i])
		monitor.IncCollated(collated.Complete())
		logger.Info("transaction collated",
			zap.Int("index", i),
			zap.String("safe", tx.From.Hex()),
			zap.Uint64("nonce", tx.Nonce),
			zap.Int("valid", len(collated.Signers)),
			zap.Uint64("threshold", tx.Threshold),
			zap.Bool("complete", collated.Complete()),
		)
		out = append(out, collated)
	}
	return out, nil
}

// collate combines the valid signatures of tx. A nil owners set skips the ownership check.
func collate(tx model.ExtendedTransaction, owners map[common.Address]bool) model.CollatedTransaction {
	result := model.CollatedTransaction{ExtendedTransaction: tx}

	valid := make([]safetx.OwnerSignature, 0, len(tx.Signatures))
	counted := make(map[common.Address]struct{}, len(tx.Signatures))
	for _, slot := range tx.Signatures {
		if slot.Empty() {
			continue
		}
		if owners != nil && !owners[slot.Signer] {
			result.Dropped = append(result.Dropped, drop(tx, slot.Signer, ReasonNotOwner))
			continue
		}
		sig, err := checkSlot(slot, tx.SafeTxHash)
		if err != nil {
			result.Dropped = append(result.Dropped, drop(tx, slot.Signer, err.Error()))
			continue
		}
		if _, dup := counted[slot.Signer]; dup {
			result.Dropped = append(result.Dropped, drop(tx, slot.Signer, ReasonDuplicate))
			continue
		}
		counted[slot.Signer] = struct{}{}
		monitor.IncSignatureAccepted(sig.Type.String())
		valid = append(valid, safetx.OwnerSignature{Owner: slot.Signer, Signature: sig})
	}

	if uint64(len(valid)) < tx.Threshold || len(valid) == 0 {
		return result
	}

	safetx.SortByOwner(valid)
	result.CombinedSignature = safetx.EncodeSignatures(valid)
	result.Signers = make([]common.Address, len(valid))
	for i, v := range valid {
		result.Signers[i] = v.Owner
	}
	return result
}

type slotError string

func (e slotError) Error() string { return string(e) }

// checkSlot parses the slot signature and recovers it against the safe tx hash.
func checkSlot(slot model.SignatureSlot, hash common.Hash) (*safetx.Signature, error) {
	sig, err := safetx.ParseSignature(slot.Signature)
	if err != nil {
		return nil, slotError(ReasonMalformed)
	}
	recovered, err := sig.Recover(hash)
	if err != nil {
		return nil, slotError(ReasonMalformed)
	}
	if recovered != slot.Signer {
		return nil, slotError(ReasonMismatch)
	}
	return sig, nil
}

func drop(tx model.ExtendedTransaction, signer common.Address, reason string) model.DroppedSignature {
	logger.Warn("signature dropped",
		zap.String("safe", tx.From.Hex()),
		zap.Uint64("nonce", tx.Nonce),
		zap.String("signer", signer.Hex()),
		zap.String("reason", reason),
		zap.Int("code", errno.ErrInvalidSignature.Code),
	)
	monitor.IncSignatureDropped(reason)
	return model.DroppedSignature{Signer: signer, Reason: reason}
}

// CollateDocument collates a signed document and sets or clears "collated-signature" on each entry.
func (c *Collator) CollateDocument(doc *model.BroadcastBatch) ([]model.CollatedTransaction, error) {
	extended, err := doc.Extended()
	if err != nil {
		return nil, err
	}
	collated, err := c.Collate(extended)
	if err != nil {
		return nil, err
	}
	if err := doc.ApplyCollated(collated); err != nil {
		return nil, err
	}
	return collated, nil
}
