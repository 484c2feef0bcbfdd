package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"safe-ledger/internal/model"
	"safe-ledger/internal/service/registry"
	"safe-ledger/pkg/config"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errno.Wrap(errno.ErrReadFile, err, "%s", path)
	}
	return data, nil
}

func loadBatch(path string) (*model.BroadcastBatch, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return model.ParseBatch(data)
}

// writeJSON 先写临时文件再 rename，失败时不会留下写了一半的文档
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errno.Wrap(errno.ErrWriteFile, err, "encode %s", path)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errno.Wrap(errno.ErrWriteFile, err, "%s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errno.Wrap(errno.ErrWriteFile, err, "%s", path)
	}
	if err := tmp.Close(); err != nil {
		return errno.Wrap(errno.ErrWriteFile, err, "%s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errno.Wrap(errno.ErrWriteFile, err, "%s", path)
	}
	logger.Debug("document written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// loadRegistry 读取 safe 元数据；配置了 redis.addr 时 nonce 存在 Redis 中供多个操作员共享
func loadRegistry(ctx context.Context, path string) (*registry.Registry, func(), error) {
	data, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	meta, err := registry.ParseMetadata(data)
	if err != nil {
		return nil, nil, err
	}

	opts := []registry.Option{registry.WithDefaultVersion(config.Global.Safe.DefaultVersion)}
	cleanup := func() {}

	if rc := config.Global.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errno.Wrap(errno.ErrConfig, err, "connect redis %s", rc.Addr)
		}
		logger.Info("using redis nonce store", zap.String("addr", rc.Addr), zap.String("prefix", rc.KeyPrefix))
		opts = append(opts, registry.WithStore(registry.NewRedisStore(client, rc.KeyPrefix)))
		cleanup = func() { client.Close() }
	}

	reg, err := registry.Load(ctx, meta, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reg, cleanup, nil
}

// loadOwners 只读取 owner 集合，nonce 留在内存中，不连接 Redis
func loadOwners(ctx context.Context, path string) (*registry.Registry, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	meta, err := registry.ParseMetadata(data)
	if err != nil {
		return nil, err
	}
	return registry.Load(ctx, meta, registry.WithDefaultVersion(config.Global.Safe.DefaultVersion))
}
