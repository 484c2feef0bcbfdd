package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// seedScript 只会把 nonce 往前推：其他操作员已经分配过的 nonce 不会被 metadata 中的旧值覆盖
var seedScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if (not current) or (tonumber(current) < tonumber(ARGV[1])) then
	redis.call('SET', KEYS[1], ARGV[1])
	return tonumber(ARGV[1])
end
return tonumber(current)
`)

// allocateScript 先确认所有 key 都已 Seed，再逐个 INCRBY；脚本在服务端原子执行。
// 返回 {0, i} 表示 KEYS[i] 不存在，否则 {1, first_1, ..., first_n}
var allocateScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call('EXISTS', key) == 0 then
		return {0, i}
	end
end
local out = {1}
for i, key in ipairs(KEYS) do
	local n = tonumber(ARGV[i])
	out[i + 1] = redis.call('INCRBY', key, n) - n
end
return out
`)

// RedisStore shares nonce counters between operators preparing batches for the same Safes.
// INCR is atomic on the server, so allocation needs no client-side lock.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(wallet common.Address) string {
	return s.prefix + strings.ToLower(wallet.Hex())
}

func (s *RedisStore) Seed(ctx context.Context, wallet common.Address, nonce uint64) error {
	if err := seedScript.Run(ctx, s.client, []string{s.key(wallet)}, nonce).Err(); err != nil {
		return fmt.Errorf("seed nonce for %s: %w", wallet.Hex(), err)
	}
	return nil
}

func (s *RedisStore) Allocate(ctx context.Context, wallet common.Address) (uint64, error) {
	// 未 Seed 的 key 上 INCR 会凭空创建计数器，先确认存在
	exists, err := s.client.Exists(ctx, s.key(wallet)).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate nonce for %s: %w", wallet.Hex(), err)
	}
	if exists == 0 {
		return 0, unknownWallet(wallet)
	}

	next, err := s.client.Incr(ctx, s.key(wallet)).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate nonce for %s: %w", wallet.Hex(), err)
	}
	return uint64(next - 1), nil
}

func (s *RedisStore) AllocateBatch(ctx context.Context, counts map[common.Address]uint64) (map[common.Address]uint64, error) {
	wallets := sortedWallets(counts)
	if len(wallets) == 0 {
		return map[common.Address]uint64{}, nil
	}
	keys := make([]string, len(wallets))
	args := make([]any, len(wallets))
	for i, w := range wallets {
		keys[i] = s.key(w)
		args[i] = counts[w]
	}

	res, err := allocateScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("allocate nonces: %w", err)
	}
	if len(res) == 2 && res[0] == 0 {
		return nil, unknownWallet(wallets[res[1]-1])
	}
	if len(res) != len(wallets)+1 {
		return nil, fmt.Errorf("allocate nonces: unexpected reply %v", res)
	}

	first := make(map[common.Address]uint64, len(wallets))
	for i, w := range wallets {
		first[w] = uint64(res[i+1])
	}
	return first, nil
}

func (s *RedisStore) Current(ctx context.Context, wallet common.Address) (uint64, error) {
	n, err := s.client.Get(ctx, s.key(wallet)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, unknownWallet(wallet)
	}
	if err != nil {
		return 0, fmt.Errorf("read nonce for %s: %w", wallet.Hex(), err)
	}
	return n, nil
}
