package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/keystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testSigner   = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

const testBroadcast = `{
  "transactions": [
    {
      "transactionType": "CALL",
      "transaction": {
        "from": "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
        "to": "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
        "value": "0xde0b6b3a7640000",
        "input": "0x",
        "nonce": "0x0",
        "chainId": "0xaa36a7"
      }
    }
  ],
  "chain": 11155111
}`

const testSafes = `{
  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed": {
    "owners": ["0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "0x1111111111111111111111111111111111111111"],
    "nonce": "0x7",
    "threshold": "0x1"
  }
}`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SAFE_LEDGER_SIGNER_PASSWORD", "correct horse")

	require.NoError(t, os.WriteFile("broadcast.json", []byte(testBroadcast), 0o644))
	require.NoError(t, os.WriteFile("safes.json", []byte(testSafes), 0o644))

	keyJSON, err := keystore.EncryptMnemonicN(testMnemonic, "correct horse", keystore.LightScryptN)
	require.NoError(t, err)
	require.NoError(t, keyJSON.SaveToFile("wallet.json"))

	out := run(t, "extend", "-i", "broadcast.json", "-s", "safes.json", "-o", "extended.json")
	assert.Contains(t, out, "nonce 7")

	out = run(t, "sign", "-i", "extended.json", "-o", "signed.json", "--keystore", "wallet.json")
	assert.Contains(t, out, testSigner)
	assert.Contains(t, out, "1 ETH")

	out = run(t, "collate", "-i", "signed.json", "-s", "safes.json", "-o", "collated.json", "-f", "flat.json", "--strict",
		"--metrics-file", filepath.Join(dir, "metrics.prom"))
	assert.Contains(t, out, "complete")

	data, err := os.ReadFile("flat.json")
	require.NoError(t, err)
	var flat []model.FlatTransaction
	require.NoError(t, json.Unmarshal(data, &flat))
	require.Len(t, flat, 1)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", flat[0].From)
	assert.Equal(t, int64(11155111), flat[0].ChainID.Int64())
	assert.Len(t, flat[0].Signatures, 65)

	// 独立运行 flatten 得到相同结果
	run(t, "flatten", "-i", "collated.json", "-o", "flat2.json", "--strict")
	data2, err := os.ReadFile("flat2.json")
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))

	out = run(t, "inspect", "-i", "collated.json", "-s", "safes.json")
	assert.Contains(t, out, "阶段: collated")
	assert.Contains(t, out, "nonce 7")

	// extended 文档未被后续阶段修改
	ext, err := os.ReadFile("extended.json")
	require.NoError(t, err)
	assert.NotContains(t, string(ext), "collated-signature")
}
