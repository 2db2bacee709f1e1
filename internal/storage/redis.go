package storage

import (
	"context"
	"time"

	"coupon-share-service/internal/apperr"
	"coupon-share-service/internal/redis"
)

const redisKeyPrefix = "coupon:image:"

// KV is the subset of the redis client used by RedisStore.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) (bool, error)
}

// RedisStore keeps images as plain string values. Entries never expire;
// they are removed only by Delete.
type RedisStore struct {
	kv KV
}

func NewRedisStore(kv KV) *RedisStore {
	return &RedisStore{kv: kv}
}

func redisKey(code string) string {
	return redisKeyPrefix + code
}

func (s *RedisStore) Has(ctx context.Context, code string) (bool, error) {
	if err := checkKey(code); err != nil {
		return false, err
	}
	return s.kv.Exists(ctx, redisKey(code))
}

func (s *RedisStore) Get(ctx context.Context, code string) ([]byte, error) {
	if err := checkKey(code); err != nil {
		return nil, err
	}
	data, err := s.kv.Get(ctx, redisKey(code))
	if err != nil {
		if redis.IsNil(err) {
			return nil, apperr.CacheMiss(code)
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, code string, data []byte) error {
	if err := checkKey(code); err != nil {
		return err
	}
	return s.kv.Set(ctx, redisKey(code), data, 0)
}

func (s *RedisStore) Delete(ctx context.Context, code string) (bool, error) {
	if err := checkKey(code); err != nil {
		return false, err
	}
	return s.kv.Del(ctx, redisKey(code))
}
