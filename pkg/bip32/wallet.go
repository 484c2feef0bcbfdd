package bip32

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// DefaultEthereumPath 是 BIP-44 以太坊第一个账户
const DefaultEthereumPath = "m/44'/60'/0'/0/0"

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// Wallet 封装 hdkeychain 主密钥
type Wallet struct {
	master *hdkeychain.ExtendedKey
}

// NewMasterKeyFromSeed 使用 BIP-39 种子生成主密钥
func NewMasterKeyFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}
	// 网络参数只影响 xprv 的序列化前缀，不影响派生出的私钥
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %v", err)
	}
	return &Wallet{master: master}, nil
}

// ParsePath 解析 "m/44'/60'/0'/0/0" 或 "m/44h/60h/0h/0/0"
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	segments := strings.Split(path[2:], "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		hardened := strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h")
		if hardened {
			segment = segment[:len(segment)-1]
		}
		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: 路径段 '%s': %v", ErrInvalidPath, segment, err)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// DerivePath 解析路径并派生扩展密钥
func (w *Wallet) DerivePath(path string) (*hdkeychain.ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	key := w.master
	for _, index := range indexes {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %v", err)
		}
	}
	return key, nil
}

// PrivateKey 派生路径上的 secp256k1 私钥，可直接用于以太坊签名
func (w *Wallet) PrivateKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := w.DerivePath(path)
	if err != nil {
		return nil, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}
