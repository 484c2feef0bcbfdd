// Package flattener projects collated transactions into the payload submitted on chain.
package flattener

import (
	"math/big"
	"time"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/monitor"

	"go.uber.org/zap"
)

type Flattener struct {
	// Strict 为 true 时遇到未达到阈值的交易直接报错，否则跳过并告警
	Strict bool
}

func New(strict bool) *Flattener {
	return &Flattener{Strict: strict}
}

// Flatten keeps the order of txs. A transaction without a combined signature is never emitted.
func (f *Flattener) Flatten(txs []model.CollatedTransaction) ([]model.FlatTransaction, error) {
	defer monitor.ObserveStage("flatten", time.Now())

	out := make([]model.FlatTransaction, 0, len(txs))
	for i, tx := range txs {
		if !tx.Complete() {
			if f.Strict {
				return nil, errno.New(errno.ErrIncompleteTransaction,
					"transactions[%d] (safe %s, nonce %d) has no collated signature, threshold %d",
					i, tx.From.Hex(), tx.Nonce, tx.Threshold)
			}
			logger.Warn("skipping incomplete transaction",
				zap.Int("index", i),
				zap.String("safe", tx.From.Hex()),
				zap.Uint64("nonce", tx.Nonce),
				zap.Uint64("threshold", tx.Threshold),
			)
			monitor.IncSkipped()
			continue
		}
		out = append(out, flatten(tx))
	}
	return out, nil
}

func flatten(tx model.CollatedTransaction) model.FlatTransaction {
	value := big.NewInt(0)
	if tx.Value != nil {
		value = new(big.Int).Set(tx.Value)
	}
	chainID := big.NewInt(0)
	if tx.ChainID != nil {
		chainID = new(big.Int).Set(tx.ChainID)
	}
	return model.FlatTransaction{
		ChainID:    chainID,
		Data:       append([]byte{}, tx.Data...),
		From:       tx.From.Hex(),
		Signatures: append([]byte{}, tx.CombinedSignature...),
		To:         tx.To.Hex(),
		Value:      value,
	}
}
