package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheEntry adalah nilai cache beserta waktu terakhir dihitung.
type CacheEntry[V any] struct {
	Value     V
	UpdatedAt time.Time
}

// SnapshotStore menyimpan entry cache secara persisten (Mongo, Redis, memory).
// Load mengembalikan (nil, nil) jika key belum pernah disimpan.
type SnapshotStore[K comparable, V any] interface {
	Load(ctx context.Context, key K) (*CacheEntry[V], error)
	Save(ctx context.Context, key K, entry CacheEntry[V]) error
}

// ComputeFunc menghitung ulang nilai. previous berisi entry lama (boleh nil, boleh stale).
type ComputeFunc[V any] func(ctx context.Context, previous *CacheEntry[V]) (V, error)

// StaleCache: compute-if-stale. Entry yang umurnya < ttl dikembalikan apa adanya,
// selain itu dihitung ulang lewat ComputeFunc lalu disimpan ke store.
// Recompute untuk key yang sama di-deduplikasi dengan singleflight.
type StaleCache[K comparable, V any] struct {
	store SnapshotStore[K, V]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

func NewStaleCache[K comparable, V any](store SnapshotStore[K, V], ttl time.Duration, now func() time.Time) *StaleCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &StaleCache[K, V]{store: store, ttl: ttl, now: now}
}

// Get mengembalikan entry segar untuk key.
func (c *StaleCache[K, V]) Get(ctx context.Context, key K, compute ComputeFunc[V]) (CacheEntry[V], error) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		return CacheEntry[V]{}, fmt.Errorf("load snapshot: %w", err)
	}
	if c.fresh(entry) {
		return *entry, nil
	}

	res, err, _ := c.group.Do(fmt.Sprint(key), func() (interface{}, error) {
		// hasil dibagi ke semua caller yang menunggu key ini, jadi pembatalan
		// request pertama tidak boleh ikut membatalkan recompute
		ctx := context.WithoutCancel(ctx)

		// cek ulang: caller lain mungkin baru saja menyimpan hasil baru
		latest, err := c.store.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if c.fresh(latest) {
			return *latest, nil
		}

		value, err := compute(ctx, latest)
		if err != nil {
			return nil, err
		}
		// presisi milidetik, sama dengan presisi BSON
		next := CacheEntry[V]{Value: value, UpdatedAt: c.now().UTC().Truncate(time.Millisecond)}
		if err := c.store.Save(ctx, key, next); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		return next, nil
	})
	if err != nil {
		return CacheEntry[V]{}, err
	}
	return res.(CacheEntry[V]), nil
}

func (c *StaleCache[K, V]) fresh(entry *CacheEntry[V]) bool {
	if entry == nil {
		return false
	}
	return c.now().Sub(entry.UpdatedAt) < c.ttl
}

// MemorySnapshotStore adalah SnapshotStore in-process (single instance / test).
type MemorySnapshotStore[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]CacheEntry[V]
}

func NewMemorySnapshotStore[K comparable, V any]() *MemorySnapshotStore[K, V] {
	return &MemorySnapshotStore[K, V]{entries: make(map[K]CacheEntry[V])}
}

func (s *MemorySnapshotStore[K, V]) Load(_ context.Context, key K) (*CacheEntry[V], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemorySnapshotStore[K, V]) Save(_ context.Context, key K, entry CacheEntry[V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}
