package registry

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"safe-ledger/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis 连接 SAFE_LEDGER_TEST_REDIS (默认 localhost:6379)，不可用时跳过
func newTestRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	addr := os.Getenv("SAFE_LEDGER_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	prefix := "safe-ledger-test:" + t.Name() + ":" + time.Now().Format("150405.000000") + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client, prefix
}

func TestRedisStoreAllocate(t *testing.T) {
	client, prefix := newTestRedis(t)
	ctx := context.Background()

	r, err := Load(ctx, testMetadata(), WithStore(NewRedisStore(client, prefix)))
	require.NoError(t, err)

	for want := uint64(5); want < 8; want++ {
		got, err := r.AllocateNonce(ctx, walletW)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// 第二个操作员用同样的 metadata 加载，不会回退已经分配的 nonce
	other, err := Load(ctx, testMetadata(), WithStore(NewRedisStore(client, prefix)))
	require.NoError(t, err)
	got, err := other.AllocateNonce(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got)

	info, err := r.Get(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), info.Nonce)
}

func TestRedisStoreUnknownWallet(t *testing.T) {
	client, prefix := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, prefix)
	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")

	_, err := store.Allocate(ctx, stranger)
	assert.True(t, errors.Is(err, errno.ErrUnknownWallet))
	_, err = store.Current(ctx, stranger)
	assert.True(t, errors.Is(err, errno.ErrUnknownWallet))
}

func TestRedisStoreAllocateBatch(t *testing.T) {
	client, prefix := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, prefix)

	r, err := Load(ctx, testMetadata(), WithStore(store))
	require.NoError(t, err)

	first, err := r.AllocateNonces(ctx, map[common.Address]uint64{walletW: 2, walletV: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), first[walletW])
	assert.Equal(t, uint64(0), first[walletV])

	// 脚本发现未 Seed 的 key 时整批不分配
	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")
	_, err = store.AllocateBatch(ctx, map[common.Address]uint64{walletW: 1, stranger: 1})
	assert.True(t, errors.Is(err, errno.ErrUnknownWallet))

	n, err := store.Current(ctx, walletW)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	n, err = store.Current(ctx, walletV)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestRedisStoreConcurrent(t *testing.T) {
	client, prefix := newTestRedis(t)
	ctx := context.Background()

	r, err := Load(ctx, testMetadata(), WithStore(NewRedisStore(client, prefix)))
	require.NoError(t, err)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := r.AllocateNonce(ctx, walletV)
			assert.NoError(t, err)
			mu.Lock()
			seen[nonce] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
