package extender

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"safe-ledger/internal/model"
	"safe-ledger/internal/service/registry"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletW = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	ownerA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	ownerB  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	ownerC  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	target  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newRegistry(t *testing.T, version string) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(context.Background(), model.WalletMetadata{
		walletW.Hex(): {
			Owners:    []string{ownerA.Hex(), ownerB.Hex(), ownerC.Hex()},
			Nonce:     "0x5",
			Threshold: "0x2",
			Version:   version,
		},
	})
	require.NoError(t, err)
	return reg
}

func proposed(data []byte) model.ProposedTransaction {
	return model.ProposedTransaction{
		From:    walletW,
		To:      target,
		Value:   big.NewInt(0),
		Data:    data,
		ChainID: big.NewInt(1),
	}
}

func TestExtendBatch(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, "")
	ext := New(reg)

	out, err := ext.ExtendBatch(ctx, []model.ProposedTransaction{proposed(nil)})
	require.NoError(t, err)
	require.Len(t, out, 1)

	tx := out[0]
	assert.Equal(t, uint64(5), tx.Nonce)
	assert.Equal(t, uint64(2), tx.Threshold)
	require.Len(t, tx.Signatures, 3)
	for i, owner := range []common.Address{ownerA, ownerB, ownerC} {
		assert.Equal(t, owner, tx.Signatures[i].Signer)
		assert.True(t, tx.Signatures[i].Empty())
	}

	want, err := (&safetx.Tx{
		Safe:    walletW,
		To:      target,
		Value:   big.NewInt(0),
		Nonce:   5,
		ChainID: big.NewInt(1),
		Version: safetx.DefaultVersion,
	}).Hash()
	require.NoError(t, err)
	assert.Equal(t, want, tx.SafeTxHash)

	got, err := tx.SafeTx.Hash()
	require.NoError(t, err)
	assert.Equal(t, tx.SafeTxHash, got)

	info, err := reg.Get(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), info.Nonce)
}

func TestExtendBatchConsecutiveNonces(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, "1.3.0")

	out, err := New(reg).ExtendBatch(ctx, []model.ProposedTransaction{
		proposed([]byte{0x01}),
		proposed([]byte{0x01}),
		proposed(nil),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, tx := range out {
		assert.Equal(t, uint64(5+i), tx.Nonce)
		n, err := tx.SafeTx.Nonce()
		require.NoError(t, err)
		assert.Equal(t, tx.Nonce, n)
	}
	// 相同调用内容，不同 nonce，哈希必须不同
	assert.NotEqual(t, out[0].SafeTxHash, out[1].SafeTxHash)

	info, err := reg.Get(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), info.Nonce)
}

func TestExtendBatchUnknownWalletAllocatesNothing(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, "")

	stranger := proposed(nil)
	stranger.From = common.HexToAddress("0x9999999999999999999999999999999999999999")

	_, err := New(reg).ExtendBatch(ctx, []model.ProposedTransaction{proposed(nil), stranger})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrUnknownWallet))

	info, err := reg.Get(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.Nonce)
}

// brokenStore 模拟批量分配时 Redis 连接中断
type brokenStore struct {
	registry.NonceStore
}

func (brokenStore) AllocateBatch(context.Context, map[common.Address]uint64) (map[common.Address]uint64, error) {
	return nil, errors.New("connection reset by peer")
}

func TestExtendBatchStoreFailureAllocatesNothing(t *testing.T) {
	ctx := context.Background()
	walletV := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	meta := model.WalletMetadata{
		walletW.Hex(): {Owners: []string{ownerA.Hex()}, Nonce: "0x5", Threshold: "0x1"},
		walletV.Hex(): {Owners: []string{ownerB.Hex()}, Nonce: "0x9", Threshold: "0x1"},
	}
	store := registry.NewMemoryStore()
	reg, err := registry.Load(ctx, meta, registry.WithStore(brokenStore{store}))
	require.NoError(t, err)

	other := proposed(nil)
	other.From = walletV
	_, err = New(reg).ExtendBatch(ctx, []model.ProposedTransaction{proposed(nil), other, proposed(nil)})
	require.Error(t, err)

	for addr, want := range map[common.Address]uint64{walletW: 5, walletV: 9} {
		info, err := reg.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, want, info.Nonce, addr.Hex())
	}
}

func TestExtendBatchOldVersion(t *testing.T) {
	out, err := New(newRegistry(t, "1.1.1")).ExtendBatch(context.Background(), []model.ProposedTransaction{proposed(nil)})
	require.NoError(t, err)
	assert.Nil(t, out[0].SafeTx.Domain.ChainID)
}

func TestExtendBatchEmpty(t *testing.T) {
	out, err := New(newRegistry(t, "")).ExtendBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

const broadcast = `{
  "transactions": [
    {
      "hash": null,
      "transactionType": "CALL",
      "contractName": "Token",
      "transaction": {
        "from": "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
        "to": "0x00000000000000000000000000000000000000aa",
        "gas": "0x1e8480",
        "value": "0x0",
        "input": "0xa9059cbb",
        "nonce": "0x0",
        "chainId": "0x1"
      }
    }
  ],
  "chain": 1,
  "commit": "abc1234"
}`

func TestExtendDocument(t *testing.T) {
	doc, err := model.ParseBatch([]byte(broadcast))
	require.NoError(t, err)

	extended, err := New(newRegistry(t, "")).ExtendDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, extended, 1)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "abc1234", generic["commit"])

	entry := generic["transactions"].([]any)[0].(map[string]any)
	assert.Equal(t, "Token", entry["contractName"])
	assert.Equal(t, extended[0].SafeTxHash.Hex(), entry["safeTxHash"])
	assert.Equal(t, "0x2", entry["threshold"])
	assert.Len(t, entry["signatures"], 3)

	inner := entry["transaction"].(map[string]any)
	assert.Equal(t, "0x5", inner["nonce"])
	assert.Equal(t, "0x1e8480", inner["gas"])

	// 写出的文档可以被下一阶段读回
	back, err := model.ParseBatch(raw)
	require.NoError(t, err)
	reread, err := back.Extended()
	require.NoError(t, err)
	assert.Equal(t, extended[0].SafeTxHash, reread[0].SafeTxHash)
	assert.Equal(t, extended[0].Signatures, reread[0].Signatures)
}
