package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisAdapter stores each snapshot under <prefix>:doc:<id> and tracks ids
// in the set <prefix>:docs.
type RedisAdapter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisAdapter wraps client. The client stays owned by the caller.
func NewRedisAdapter(client *redis.Client, keyPrefix string) *RedisAdapter {
	if keyPrefix == "" {
		keyPrefix = "jsonsync"
	}
	return &RedisAdapter{client: client, keyPrefix: keyPrefix}
}

func (a *RedisAdapter) documentKey(docID string) string {
	return fmt.Sprintf("%s:doc:%s", a.keyPrefix, docID)
}

func (a *RedisAdapter) listKey() string {
	return fmt.Sprintf("%s:docs", a.keyPrefix)
}

func (a *RedisAdapter) Save(ctx context.Context, docID string, data []byte) error {
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, a.documentKey(docID), data, 0)
		pipe.SAdd(ctx, a.listKey(), docID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *RedisAdapter) Load(ctx context.Context, docID string) ([]byte, error) {
	data, err := a.client.Get(ctx, a.documentKey(docID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func (a *RedisAdapter) List(ctx context.Context) ([]string, error) {
	members, err := a.client.SMembers(ctx, a.listKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot list: %w", err)
	}
	return members, nil
}

func (a *RedisAdapter) Delete(ctx context.Context, docID string) error {
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, a.documentKey(docID))
		pipe.SRem(ctx, a.listKey(), docID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (a *RedisAdapter) Close() error {
	return nil
}
