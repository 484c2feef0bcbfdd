// Package registry holds the Safe wallets a batch may reference and hands out their nonces.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"safe-ledger/internal/model"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Registry maps wallet addresses to their metadata. Owners and threshold are fixed after
// Load; nonces live in the NonceStore and only move forward.
type Registry struct {
	wallets map[common.Address]model.WalletInfo
	store   NonceStore
}

type options struct {
	store          NonceStore
	defaultVersion string
}

type Option func(*options)

// WithStore replaces the in-memory nonce store, e.g. with a RedisStore.
func WithStore(s NonceStore) Option {
	return func(o *options) { o.store = s }
}

// WithDefaultVersion sets the Safe version of wallets whose metadata carries none.
func WithDefaultVersion(v string) Option {
	return func(o *options) { o.defaultVersion = v }
}

// Load validates the metadata and seeds the nonce store. Nothing is seeded if any entry is malformed.
func Load(ctx context.Context, meta model.WalletMetadata, opts ...Option) (*Registry, error) {
	o := options{defaultVersion: safetx.DefaultVersion}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}

	wallets := make(map[common.Address]model.WalletInfo, len(meta))
	for rawAddr, entry := range meta {
		info, err := model.ParseWalletInfo(rawAddr, entry, o.defaultVersion)
		if err != nil {
			return nil, err
		}
		if _, dup := wallets[info.Address]; dup {
			return nil, errno.New(errno.ErrMalformedMetadata, "wallet %s listed twice", info.Address.Hex())
		}
		wallets[info.Address] = info
	}

	for addr, info := range wallets {
		if err := o.store.Seed(ctx, addr, info.Nonce); err != nil {
			return nil, err
		}
	}

	logger.Info("wallet registry loaded", zap.Int("wallets", len(wallets)))
	return &Registry{wallets: wallets, store: o.store}, nil
}

// ParseMetadata decodes the safe info document.
func ParseMetadata(data []byte) (model.WalletMetadata, error) {
	var meta model.WalletMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errno.Wrap(errno.ErrMalformedMetadata, err, "decode wallet metadata")
	}
	return meta, nil
}

// Get returns a copy of the wallet info with its current nonce.
func (r *Registry) Get(ctx context.Context, addr common.Address) (model.WalletInfo, error) {
	info, ok := r.wallets[addr]
	if !ok {
		return model.WalletInfo{}, unknownWallet(addr)
	}
	nonce, err := r.store.Current(ctx, addr)
	if err != nil {
		return model.WalletInfo{}, err
	}
	info = info.Clone()
	info.Nonce = nonce
	return info, nil
}

// Has reports whether addr is registered.
func (r *Registry) Has(addr common.Address) bool {
	_, ok := r.wallets[addr]
	return ok
}

// Owners returns a copy of the wallet's owner list.
func (r *Registry) Owners(addr common.Address) ([]common.Address, error) {
	info, ok := r.wallets[addr]
	if !ok {
		return nil, unknownWallet(addr)
	}
	return info.Clone().Owners, nil
}

// AllocateNonce returns the wallet's current nonce and increments it.
// Two calls for the same wallet never return the same value.
func (r *Registry) AllocateNonce(ctx context.Context, addr common.Address) (uint64, error) {
	if !r.Has(addr) {
		return 0, unknownWallet(addr)
	}
	n, err := r.store.Allocate(ctx, addr)
	if err != nil {
		return 0, err
	}
	logger.Debug("nonce allocated", zap.String("safe", addr.Hex()), zap.Uint64("nonce", n))
	return n, nil
}

// AllocateNonces reserves counts[w] consecutive nonces for every wallet w and returns the first
// nonce of each range. Nothing is allocated if any wallet is unknown or the store fails.
func (r *Registry) AllocateNonces(ctx context.Context, counts map[common.Address]uint64) (map[common.Address]uint64, error) {
	for addr := range counts {
		if !r.Has(addr) {
			return nil, unknownWallet(addr)
		}
	}
	first, err := r.store.AllocateBatch(ctx, counts)
	if err != nil {
		return nil, err
	}
	for addr, n := range first {
		logger.Debug("nonces allocated", zap.String("safe", addr.Hex()), zap.Uint64("first", n), zap.Uint64("count", counts[addr]))
	}
	return first, nil
}

// Snapshot lists every wallet sorted by address.
func (r *Registry) Snapshot(ctx context.Context) ([]model.WalletInfo, error) {
	out := make([]model.WalletInfo, 0, len(r.wallets))
	for addr := range r.wallets {
		info, err := r.Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0
	})
	return out, nil
}

func unknownWallet(addr common.Address) error {
	return errno.New(errno.ErrUnknownWallet, "%s", addr.Hex())
}
