package symbols

import (
	"context"

	"github.com/quietridge/copilot-core/cache"
)

// MappingStore is the last-successful-mapping cache's storage seam. The
// default, memMappingStore, is an in-memory cache.Cache[string]; when the
// Redis ping at startup succeeds, main wires in a RedisMappingStore instead so
// every replica of the core shares mappings a sibling already learned.
// Either way a miss is just a miss: Resolve falls through to Directory
// lookup and search again, so a stale or absent mapping never fails a
// request, only costs it an extra probe.
type MappingStore interface {
	GetFresh(ctx context.Context, canonical string) (string, bool)
	Put(ctx context.Context, canonical, external string)
}

type memMappingStore struct {
	cache *cache.Cache[string]
}

func newMemMappingStore() *memMappingStore {
	return &memMappingStore{cache: cache.New[string](mappingCacheMaxEntries, mappingCacheTTLMs)}
}

func (m *memMappingStore) GetFresh(ctx context.Context, canonical string) (string, bool) {
	e, ok := m.cache.GetFresh(canonical)
	return e.Value, ok
}

func (m *memMappingStore) Put(ctx context.Context, canonical, external string) {
	m.cache.Put(canonical, external)
}

// RedisMapper is the small interface over the Redis operations the mapping
// store needs, kept independent of redisclient's concrete type so symbols
// never has to import it directly.
type RedisMapper interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttlMs int64) error
}

const redisMappingKeyPrefix = "symresolve:mapping:"

// RedisMappingStore backs the last-successful-mapping cache with a shared
// Redis key space. A Redis error downgrades to a cache miss rather than
// propagating, matching memMappingStore's no-fail contract.
type RedisMappingStore struct {
	client RedisMapper
}

// NewRedisMappingStore builds a RedisMappingStore over client.
func NewRedisMappingStore(client RedisMapper) *RedisMappingStore {
	return &RedisMappingStore{client: client}
}

func (r *RedisMappingStore) GetFresh(ctx context.Context, canonical string) (string, bool) {
	v, ok, err := r.client.Get(ctx, redisMappingKeyPrefix+canonical)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}

func (r *RedisMappingStore) Put(ctx context.Context, canonical, external string) {
	_ = r.client.SetEx(ctx, redisMappingKeyPrefix+canonical, external, mappingCacheTTLMs)
}
