package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/pkg"
)

// RedisStore keeps one partition in one logical redis DB, each record as a
// hash under its transaction key. The two partitions must not share a DB
// index: both use the same key prefix, so records would collide. Clearing is
// scoped to the transaction key space, which leaves operational keys in the
// same DB (the upload rate counter) untouched.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Clear deletes every transaction key in the partition. Not FLUSHDB: that
// would also drop non-partition keys sharing the DB.
func (s *RedisStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, pkg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("failed to scan partition for clear", zap.Error(err))
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Error("failed to clear partition", zap.Int("keys", len(keys)), zap.Error(err))
		return err
	}
	s.logger.Debug("partition cleared", zap.Int("keys", len(keys)))
	return nil
}

func (s *RedisStore) Write(ctx context.Context, key string, rec Record) error {
	return s.client.HSet(ctx, key, map[string]string(rec)).Err()
}

// ReadAll scans the partition's key space and fetches every hash. SCAN keeps
// large partitions from blocking the server the way KEYS would.
func (s *RedisStore) ReadAll(ctx context.Context) (map[string]Record, error) {
	out := make(map[string]Record)
	iter := s.client.Scan(ctx, 0, pkg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		out[key] = fields
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
