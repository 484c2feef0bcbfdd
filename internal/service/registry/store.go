package registry

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceStore owns the nonce counters of the registered wallets.
// Allocate must return the current value and increment it as one atomic step per wallet.
type NonceStore interface {
	// Seed registers a wallet with the nonce read from its metadata.
	Seed(ctx context.Context, wallet common.Address, nonce uint64) error
	// Allocate returns the next unused nonce and consumes it.
	Allocate(ctx context.Context, wallet common.Address) (uint64, error)
	// AllocateBatch consumes counts[w] consecutive nonces of every wallet w and returns the first
	// of each range. Either every range is allocated or none is.
	AllocateBatch(ctx context.Context, counts map[common.Address]uint64) (map[common.Address]uint64, error)
	// Current returns the next nonce Allocate would hand out.
	Current(ctx context.Context, wallet common.Address) (uint64, error)
}

type counter struct {
	mu    sync.Mutex
	nonce uint64
}

// memoryStore 每个钱包一把锁，不同钱包的分配互不阻塞
type memoryStore struct {
	mu       sync.RWMutex
	counters map[common.Address]*counter
}

func NewMemoryStore() NonceStore {
	return &memoryStore{counters: make(map[common.Address]*counter)}
}

func (s *memoryStore) Seed(_ context.Context, wallet common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[wallet] = &counter{nonce: nonce}
	return nil
}

func (s *memoryStore) counter(wallet common.Address) (*counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[wallet]
	if !ok {
		return nil, unknownWallet(wallet)
	}
	return c, nil
}

func (s *memoryStore) Allocate(_ context.Context, wallet common.Address) (uint64, error) {
	c, err := s.counter(wallet)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.nonce
	c.nonce++
	return n, nil
}

func (s *memoryStore) AllocateBatch(_ context.Context, counts map[common.Address]uint64) (map[common.Address]uint64, error) {
	wallets := sortedWallets(counts)
	locked := make([]*counter, 0, len(wallets))
	for _, w := range wallets {
		c, err := s.counter(w)
		if err != nil {
			return nil, err
		}
		locked = append(locked, c)
	}

	// 按地址顺序加锁，并发的批量分配不会互相等待成环
	for _, c := range locked {
		c.mu.Lock()
	}
	defer func() {
		for _, c := range locked {
			c.mu.Unlock()
		}
	}()

	first := make(map[common.Address]uint64, len(wallets))
	for i, w := range wallets {
		first[w] = locked[i].nonce
		locked[i].nonce += counts[w]
	}
	return first, nil
}

func (s *memoryStore) Current(_ context.Context, wallet common.Address) (uint64, error) {
	c, err := s.counter(wallet)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func sortedWallets(counts map[common.Address]uint64) []common.Address {
	out := make([]common.Address, 0, len(counts))
	for w := range counts {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}
