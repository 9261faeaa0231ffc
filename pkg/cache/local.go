package cache

import (
	"context"
	"sync"
	"time"
)

// localCache 本地缓存实现
type localCache struct {
	config LocalConfig
	mu     sync.RWMutex
	items  map[string]*cacheItem
	done   chan struct{}
}

// cacheItem 缓存项
type cacheItem struct {
	value      interface{}
	expiration time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && i.expiration.Before(now)
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) Cache {
	lc := &localCache{
		config: config,
		items:  make(map[string]*cacheItem),
		done:   make(chan struct{}),
	}

	// 启动清理协程
	go lc.startCleanup()

	return lc
}

func (lc *localCache) startCleanup() {
	interval := lc.config.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-lc.done:
			return
		case <-t.C:
			now := time.Now()
			lc.mu.Lock()
			for k, item := range lc.items {
				if item.expired(now) {
					delete(lc.items, k)
				}
			}
			lc.mu.Unlock()
		}
	}
}

func (lc *localCache) expirationFor(d time.Duration) time.Time {
	if d <= 0 {
		d = lc.config.DefaultExpiration
	}
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

// Get 获取缓存值
func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	lc.mu.RLock()
	item, ok := lc.items[key]
	lc.mu.RUnlock()
	if !ok || item.expired(time.Now()) {
		return nil, false
	}
	return item.value, true
}

// Set 设置缓存值
func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.mu.Lock()
	lc.items[key] = &cacheItem{value: value, expiration: lc.expirationFor(expiration)}
	lc.mu.Unlock()
	return nil
}

// Delete 删除缓存
func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.mu.Lock()
	delete(lc.items, key)
	lc.mu.Unlock()
	return nil
}

// Exists 检查键是否存在
func (lc *localCache) Exists(ctx context.Context, key string) bool {
	_, ok := lc.Get(ctx, key)
	return ok
}

// SetNX 不存在时设置
func (lc *localCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if item, ok := lc.items[key]; ok && !item.expired(time.Now()) {
		return false, nil
	}
	lc.items[key] = &cacheItem{value: value, expiration: lc.expirationFor(expiration)}
	return true, nil
}

// Increment 自增
func (lc *localCache) Increment(ctx context.Context, key string, value int64) (int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	var current int64
	if item, ok := lc.items[key]; ok && !item.expired(time.Now()) {
		if n, ok := item.value.(int64); ok {
			current = n
		}
	}
	current += value
	lc.items[key] = &cacheItem{value: current, expiration: lc.expirationFor(0)}
	return current, nil
}

// Close 关闭缓存
func (lc *localCache) Close() error {
	close(lc.done)
	return nil
}
