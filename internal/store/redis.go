package store

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/go-redis/redis/v8"
)

// RedisKV keeps entries as plain redis strings.
type RedisKV struct {
	Client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{Client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisKV) SetMany(ctx context.Context, entries map[string][]byte) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	return err
}

// SetManyIfUnchanged commits entries under WATCH so a write from another
// instance between read and commit aborts the batch.
func (r *RedisKV) SetManyIfUnchanged(ctx context.Context, seen, entries map[string][]byte) error {
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}

	err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
		for k, want := range seen {
			got, err := tx.Get(ctx, k).Bytes()
			if err == redis.Nil {
				got = nil
			} else if err != nil {
				return err
			}
			if !bytes.Equal(got, want) {
				return ErrConflict
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range entries {
				pipe.Set(ctx, k, v, 0)
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}
