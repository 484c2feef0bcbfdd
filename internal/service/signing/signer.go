// Package signing fills the signature slots of an extended batch with a local key.
package signing

import (
	"context"
	"crypto/ecdsa"

	"safe-ledger/pkg/bip32"
	"safe-ledger/pkg/bip39"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/keystore"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces Safe owner signatures over the EIP-712 pre-image.
type Signer interface {
	Address(ctx context.Context) (common.Address, error)
	// Sign returns a 65-byte r ‖ s ‖ v signature with v = 27/28.
	Sign(ctx context.Context, preimage *safetx.Preimage) ([]byte, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewKeystoreSigner decrypts a mnemonic keystore and derives the key at derivationPath.
func NewKeystoreSigner(path, password, derivationPath string) (*KeySigner, error) {
	keyJSON, err := keystore.LoadFromFile(path)
	if err != nil {
		return nil, errno.Wrap(errno.ErrKeystore, err, "load %s", path)
	}
	mnemonic, err := keystore.DecryptMnemonic(keyJSON, password)
	if err != nil {
		return nil, errno.Wrap(errno.ErrKeystore, err, "decrypt %s", path)
	}
	return NewMnemonicSigner(mnemonic, derivationPath)
}

// NewMnemonicSigner derives the key at derivationPath (BIP-44 Ethereum account 0 when empty).
func NewMnemonicSigner(mnemonic, derivationPath string) (*KeySigner, error) {
	if derivationPath == "" {
		derivationPath = bip32.DefaultEthereumPath
	}
	seed, err := bip39.Seed(mnemonic, "")
	if err != nil {
		return nil, errno.Wrap(errno.ErrKeystore, err, "mnemonic")
	}
	wallet, err := bip32.NewMasterKeyFromSeed(seed)
	if err != nil {
		return nil, errno.Wrap(errno.ErrKeystore, err, "master key")
	}
	key, err := wallet.PrivateKey(derivationPath)
	if err != nil {
		return nil, errno.Wrap(errno.ErrKeystore, err, "derive %s", derivationPath)
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address(context.Context) (common.Address, error) {
	return s.addr, nil
}

func (s *KeySigner) Sign(_ context.Context, preimage *safetx.Preimage) ([]byte, error) {
	hash, err := preimage.Hash()
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, errno.Wrap(errno.ErrSignerFailed, err, "sign %s", hash.Hex())
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
