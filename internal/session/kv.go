package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV 是会话数据的持久化存储，每个会话是一组字段
type KV interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, fields map[string]string, ttl time.Duration) error
	// Remove 删除指定字段，不指定字段时删除整个会话
	Remove(ctx context.Context, id string, fields ...string) error
}

type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb, prefix: "console_session_"}
}

func (kv *RedisKV) key(id string) string {
	return kv.prefix + id
}

func (kv *RedisKV) Load(ctx context.Context, id string) (map[string]string, error) {
	return kv.rdb.HGetAll(ctx, kv.key(id)).Result()
}

func (kv *RedisKV) Save(ctx context.Context, id string, fields map[string]string, ttl time.Duration) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := kv.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, kv.key(id), values)
		if ttl > 0 {
			pipe.Expire(ctx, kv.key(id), ttl)
		}
		return nil
	})
	return err
}

func (kv *RedisKV) Remove(ctx context.Context, id string, fields ...string) error {
	if len(fields) == 0 {
		return kv.rdb.Del(ctx, kv.key(id)).Err()
	}
	return kv.rdb.HDel(ctx, kv.key(id), fields...).Err()
}

// MemoryKV 用于测试和不连接 redis 的本地开发
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memoryEntry), now: time.Now}
}

func (kv *MemoryKV) Load(_ context.Context, id string) (map[string]string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	entry, ok := kv.data[id]
	if !ok {
		return map[string]string{}, nil
	}
	if !entry.expiresAt.IsZero() && kv.now().After(entry.expiresAt) {
		delete(kv.data, id)
		return map[string]string{}, nil
	}
	return maps.Clone(entry.fields), nil
}

func (kv *MemoryKV) Save(_ context.Context, id string, fields map[string]string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	entry, ok := kv.data[id]
	if !ok {
		entry = memoryEntry{fields: make(map[string]string)}
	}
	maps.Copy(entry.fields, fields)
	if ttl > 0 {
		entry.expiresAt = kv.now().Add(ttl)
	}
	kv.data[id] = entry
	return nil
}

func (kv *MemoryKV) Remove(_ context.Context, id string, fields ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if len(fields) == 0 {
		delete(kv.data, id)
		return nil
	}
	if entry, ok := kv.data[id]; ok {
		for _, f := range fields {
			delete(entry.fields, f)
		}
	}
	return nil
}
