package flattener

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collated(nonce uint64, sig []byte) model.CollatedTransaction {
	return model.CollatedTransaction{
		ExtendedTransaction: model.ExtendedTransaction{
			ProposedTransaction: model.ProposedTransaction{
				From:    common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
				To:      common.HexToAddress("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"),
				Value:   big.NewInt(1000),
				Data:    []byte{0xa9, 0x05, 0x9c, 0xbb},
				ChainID: big.NewInt(11155111),
			},
			Nonce:     nonce,
			Threshold: 1,
		},
		CombinedSignature: sig,
	}
}

func TestFlatten(t *testing.T) {
	sig := bytes.Repeat([]byte{0xAB}, 65)
	out, err := New(false).Flatten([]model.CollatedTransaction{collated(1, sig)})
	require.NoError(t, err)
	require.Len(t, out, 1)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"chainId": 11155111,
		"data": "0xa9059cbb",
		"from": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"signatures": "0x`+string(bytes.Repeat([]byte("ab"), 65))+`",
		"to": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"value": 1000
	}]`, string(raw))
}

func TestFlattenSkipsIncomplete(t *testing.T) {
	sig := bytes.Repeat([]byte{0x01}, 65)
	txs := []model.CollatedTransaction{collated(1, sig), collated(2, nil), collated(3, sig)}

	out, err := New(false).Flatten(txs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, f := range out {
		assert.NotEmpty(t, f.Signatures)
	}

	_, err = New(true).Flatten(txs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrIncompleteTransaction))
}

func TestFlattenEmptyData(t *testing.T) {
	tx := collated(1, bytes.Repeat([]byte{0x01}, 65))
	tx.Data = nil
	tx.Value = nil

	out, err := New(true).Flatten([]model.CollatedTransaction{tx})
	require.NoError(t, err)
	raw, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":"0x"`)
	assert.Contains(t, string(raw), `"value":0`)
}
