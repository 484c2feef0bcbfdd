package bip32

import (
	"errors"
	"testing"

	"safe-ledger/pkg/bip39"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestPrivateKeyKnownVector(t *testing.T) {
	seed, err := bip39.Seed("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "")
	if err != nil {
		t.Fatalf("生成种子失败: %v", err)
	}
	wallet, err := NewMasterKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("生成主密钥失败: %v", err)
	}

	key, err := wallet.PrivateKey(DefaultEthereumPath)
	if err != nil {
		t.Fatalf("派生私钥失败: %v", err)
	}
	// MetaMask / Ledger 对该助记词给出的第一个地址
	want := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != want {
		t.Errorf("地址不匹配: 得到 %s, 期望 %s", got, want)
	}

	// h 与 ' 两种写法等价
	alt, err := wallet.PrivateKey("m/44h/60h/0h/0/0")
	if err != nil {
		t.Fatalf("派生私钥失败: %v", err)
	}
	if alt.D.Cmp(key.D) != 0 {
		t.Errorf("m/44h/60h/0h/0/0 与 %s 派生结果不同", DefaultEthereumPath)
	}
}

func TestParsePathInvalid(t *testing.T) {
	for _, path := range []string{"44'/60'", "m/x", "m/44'//0", "m/2147483648"} {
		if _, err := ParsePath(path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("路径 %q 期望 ErrInvalidPath, 得到 %v", path, err)
		}
	}
}

func TestNewMasterKeyInvalidSeed(t *testing.T) {
	if _, err := NewMasterKeyFromSeed([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("期望 ErrInvalidSeed, 得到 %v", err)
	}
}
