// Package extender binds proposed Safe transactions to nonces and builds what owners sign.
package extender

import (
	"context"
	"time"

	"safe-ledger/internal/model"
	"safe-ledger/internal/service/registry"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/monitor"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Extender struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Extender {
	return &Extender{registry: reg}
}

// ExtendBatch extends txs in input order. Transactions of the same Safe receive consecutive nonces.
// Every sender is resolved and the nonces of the whole batch are reserved in one step, so a
// failed batch leaves the registry untouched.
func (e *Extender) ExtendBatch(ctx context.Context, txs []model.ProposedTransaction) ([]model.ExtendedTransaction, error) {
	defer monitor.ObserveStage("extend", time.Now())

	wallets := make([]model.WalletInfo, len(txs))
	for i, tx := range txs {
		info, err := e.registry.Get(ctx, tx.From)
		if err != nil {
			return nil, err
		}
		// 先用当前 nonce 试算一次，构造失败时还没有消耗任何 nonce
		if _, err := extend(tx, info, info.Nonce); err != nil {
			return nil, errno.Wrap(errno.ErrMalformedBatch, err, "transactions[%d]", i)
		}
		wallets[i] = info
	}

	// 每个 Safe 需要的 nonce 一次性分配，失败时不消耗任何 nonce
	counts := make(map[common.Address]uint64)
	for _, tx := range txs {
		counts[tx.From]++
	}
	next, err := e.registry.AllocateNonces(ctx, counts)
	if err != nil {
		return nil, err
	}

	out := make([]model.ExtendedTransaction, 0, len(txs))
	for i, tx := range txs {
		nonce := next[tx.From]
		next[tx.From]++
		monitor.IncNonceAllocated(tx.From.Hex())

		ext, err := extend(tx, wallets[i], nonce)
		if err != nil {
			return nil, errno.Wrap(errno.ErrMalformedBatch, err, "transactions[%d]", i)
		}
		monitor.IncExtended(tx.From.Hex())
		logger.Info("transaction extended",
			zap.Int("index", i),
			zap.String("safe", tx.From.Hex()),
			zap.Uint64("nonce", nonce),
			zap.String("safeTxHash", ext.SafeTxHash.Hex()),
		)
		out = append(out, ext)
	}
	return out, nil
}

func extend(tx model.ProposedTransaction, wallet model.WalletInfo, nonce uint64) (model.ExtendedTransaction, error) {
	preimage, err := tx.SafeTransaction(nonce, wallet.Version).Preimage()
	if err != nil {
		return model.ExtendedTransaction{}, err
	}
	hash, err := preimage.Hash()
	if err != nil {
		return model.ExtendedTransaction{}, err
	}

	slots := make([]model.SignatureSlot, len(wallet.Owners))
	for i, owner := range wallet.Owners {
		slots[i] = model.SignatureSlot{Signer: owner}
	}

	return model.ExtendedTransaction{
		ProposedTransaction: tx,
		Nonce:               nonce,
		SafeTx:              preimage,
		SafeTxHash:          hash,
		Signatures:          slots,
		Threshold:           wallet.Threshold,
	}, nil
}

// ExtendDocument extends a foundry broadcast document in place.
func (e *Extender) ExtendDocument(ctx context.Context, doc *model.BroadcastBatch) ([]model.ExtendedTransaction, error) {
	proposed, err := doc.Proposed()
	if err != nil {
		return nil, err
	}
	extended, err := e.ExtendBatch(ctx, proposed)
	if err != nil {
		return nil, err
	}
	if err := doc.ApplyExtended(extended); err != nil {
		return nil, err
	}
	return extended, nil
}
