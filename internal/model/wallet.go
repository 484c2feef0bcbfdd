package model

import (
	"fmt"

	"safe-ledger/pkg/address"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
)

// WalletMetadata is the safe info document: address -> metadata.
type WalletMetadata map[string]WalletMetadataEntry

type WalletMetadataEntry struct {
	Owners    []string `json:"owners"`
	Nonce     string   `json:"nonce"`     // hex
	Threshold string   `json:"threshold"` // hex
	Version   string   `json:"version,omitempty"`
}

// WalletInfo 描述一个 Safe 多签钱包
type WalletInfo struct {
	Address   common.Address
	Owners    []common.Address
	Threshold uint64
	Nonce     uint64
	Version   string
}

// Clone returns a copy that does not share the owner slice.
func (w WalletInfo) Clone() WalletInfo {
	w.Owners = append([]common.Address(nil), w.Owners...)
	return w
}

func (w WalletInfo) IsOwner(addr common.Address) bool {
	for _, o := range w.Owners {
		if o == addr {
			return true
		}
	}
	return false
}

// ParseWalletInfo validates one metadata entry. All failures are ErrMalformedMetadata.
func ParseWalletInfo(rawAddr string, e WalletMetadataEntry, defaultVersion string) (WalletInfo, error) {
	addr, err := address.Parse(rawAddr)
	if err != nil {
		return WalletInfo{}, errno.Wrap(errno.ErrMalformedMetadata, err, "wallet address")
	}

	if len(e.Owners) == 0 {
		return WalletInfo{}, errno.New(errno.ErrMalformedMetadata, "wallet %s has no owners", addr.Hex())
	}
	owners := make([]common.Address, 0, len(e.Owners))
	seen := make(map[common.Address]struct{}, len(e.Owners))
	for i, o := range e.Owners {
		owner, err := address.Parse(o)
		if err != nil {
			return WalletInfo{}, errno.Wrap(errno.ErrMalformedMetadata, err, "wallet %s owner %d", addr.Hex(), i)
		}
		if _, dup := seen[owner]; dup {
			return WalletInfo{}, errno.New(errno.ErrMalformedMetadata, "wallet %s lists owner %s twice", addr.Hex(), owner.Hex())
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}

	nonce, err := ParseHexUint64(e.Nonce)
	if err != nil {
		return WalletInfo{}, errno.Wrap(errno.ErrMalformedMetadata, err, "wallet %s nonce", addr.Hex())
	}
	threshold, err := ParseHexUint64(e.Threshold)
	if err != nil {
		return WalletInfo{}, errno.Wrap(errno.ErrMalformedMetadata, err, "wallet %s threshold", addr.Hex())
	}
	if threshold == 0 || threshold > uint64(len(owners)) {
		return WalletInfo{}, errno.New(errno.ErrMalformedMetadata,
			"wallet %s threshold %d outside 1..%d", addr.Hex(), threshold, len(owners))
	}

	version := e.Version
	if version == "" {
		version = defaultVersion
	}
	if !safetx.ValidVersion(version) {
		return WalletInfo{}, errno.New(errno.ErrMalformedMetadata, "wallet %s version %q", addr.Hex(), version)
	}

	return WalletInfo{
		Address:   addr,
		Owners:    owners,
		Threshold: threshold,
		Nonce:     nonce,
		Version:   version,
	}, nil
}

func (w WalletInfo) String() string {
	return fmt.Sprintf("%s (%d/%d, nonce %d, v%s)", w.Address.Hex(), w.Threshold, len(w.Owners), w.Nonce, w.Version)
}
