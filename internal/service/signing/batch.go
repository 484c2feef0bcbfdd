package signing

import (
	"context"
	"time"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/monitor"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// SignBatch fills every slot that belongs to the signer and returns how many were filled.
// Each pre-image is checked against safeTxHash and the transaction fields before it is signed.
func SignBatch(ctx context.Context, txs []model.ExtendedTransaction, s Signer) (int, error) {
	defer monitor.ObserveStage("sign", time.Now())

	addr, err := s.Address(ctx)
	if err != nil {
		return 0, err
	}

	signed := 0
	for i := range txs {
		tx := &txs[i]
		var slots []int
		for j, slot := range tx.Signatures {
			if slot.Signer == addr {
				slots = append(slots, j)
			}
		}
		if len(slots) == 0 {
			continue
		}

		if tx.SafeTx == nil {
			return signed, errno.New(errno.ErrMalformedBatch, "transactions[%d]: missing safeTx pre-image", i)
		}
		// 先确认 pre-image 描述的就是文档中的这笔交易，再交给签名工具
		if err := tx.VerifyHash(); err != nil {
			return signed, errno.Wrap(errno.ErrHashMismatch, err, "transactions[%d]", i)
		}
		hash := tx.SafeTxHash

		raw, err := s.Sign(ctx, tx.SafeTx)
		if err != nil {
			return signed, err
		}
		// 签名工具返回的结果先自检，避免把无效签名写进文件
		sig, err := safetx.ParseSignature(hexutil.Encode(raw))
		if err != nil {
			return signed, errno.Wrap(errno.ErrSignerFailed, err, "transactions[%d]", i)
		}
		recovered, err := sig.Recover(hash)
		if err != nil || recovered != addr {
			return signed, errno.New(errno.ErrSignerFailed, "transactions[%d]: signature does not recover to %s", i, addr.Hex())
		}

		for _, j := range slots {
			tx.Signatures[j].Signature = sig.Hex()
		}
		signed++
		logger.Info("transaction signed",
			zap.Int("index", i),
			zap.String("safe", tx.From.Hex()),
			zap.Uint64("nonce", tx.Nonce),
			zap.String("signer", addr.Hex()),
		)
	}
	monitor.AddSlotsSigned(signed)
	return signed, nil
}

// SignDocument signs a document in place.
func SignDocument(ctx context.Context, doc *model.BroadcastBatch, s Signer) (int, error) {
	txs, err := doc.Extended()
	if err != nil {
		return 0, err
	}
	n, err := SignBatch(ctx, txs, s)
	if err != nil {
		return 0, err
	}
	if err := doc.ApplySignatures(txs); err != nil {
		return 0, err
	}
	return n, nil
}
