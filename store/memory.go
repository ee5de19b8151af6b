package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/rankproxy/core"
)

// MemoryStore 是内存实现的 Cache，用于测试/开发/原型。
// 支持 TTL（过期时间），但进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*entry
	ttl   time.Duration
	clean *time.Ticker
}

type entry struct {
	value    string
	expireAt *time.Time
}

// MemoryStoreOption 配置 MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMemoryTTL 设置写入条目的过期时间（0 表示不过期）
func WithMemoryTTL(ttl time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) {
		m.ttl = ttl
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		data:  make(map[string]*entry),
		clean: time.NewTicker(10 * time.Second),
	}
	for _, opt := range opts {
		opt(ms)
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return "", core.ErrCacheNotFound
	}
	if e.expireAt != nil && time.Now().After(*e.expireAt) {
		return "", core.ErrCacheNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if m.ttl > 0 {
		expire := time.Now().Add(m.ttl)
		e.expireAt = &expire
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Close() error {
	if m.clean != nil {
		m.clean.Stop()
	}
	return nil
}

func (m *MemoryStore) cleanup() {
	for range m.clean.C {
		m.mu.Lock()
		now := time.Now()
		for k, e := range m.data {
			if e.expireAt != nil && now.After(*e.expireAt) {
				delete(m.data, k)
			}
		}
		m.mu.Unlock()
	}
}

// 确保 MemoryStore 实现了 core.Cache 接口
var _ core.Cache = (*MemoryStore)(nil)
