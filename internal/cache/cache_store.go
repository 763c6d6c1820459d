package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"discord-chat-manager/internal/ports"
)

var _ ports.AssetCache = (*CacheStore)(nil)

// CacheItem представляет загруженный ресурс в кэше
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// CacheStore хранит загруженные ресурсы CDN между экспортами.
// maxBytes ограничивает общий объем; при переполнении вытесняются
// элементы с самым ранним сроком действия.
type CacheStore struct {
	cache    map[string]*CacheItem
	size     int64
	maxBytes int64
	clock    func() time.Time
	mutex    sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore. maxBytes <= 0 снимает ограничение.
func NewCacheStore(maxBytes int64) *CacheStore {
	return &CacheStore{
		cache:    make(map[string]*CacheItem),
		maxBytes: maxBytes,
		clock:    time.Now,
	}
}

// Key возвращает ключ кэша для адреса ресурса
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get извлекает ресурс по адресу
func (cs *CacheStore) Get(url string) ([]byte, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[Key(url)]
	if !exists || cs.clock().After(item.ExpiresAt) {
		return nil, false
	}
	return item.Data, true
}

// Put сохраняет ресурс с указанным сроком действия
func (cs *CacheStore) Put(url string, data []byte, ttl time.Duration) {
	if cs.maxBytes > 0 && int64(len(data)) > cs.maxBytes {
		return
	}

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	key := Key(url)
	if old, ok := cs.cache[key]; ok {
		cs.size -= int64(len(old.Data))
	}
	cs.cache[key] = &CacheItem{Data: data, ExpiresAt: cs.clock().Add(ttl)}
	cs.size += int64(len(data))

	if cs.maxBytes > 0 && cs.size > cs.maxBytes {
		cs.removeExpiredLocked()
		for cs.size > cs.maxBytes {
			cs.evictOldestLocked(key)
		}
	}
}

// Stats возвращает число элементов и их общий объем
func (cs *CacheStore) Stats() (items int, bytes int64) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache), cs.size
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.removeExpiredLocked()
}

func (cs *CacheStore) removeExpiredLocked() {
	now := cs.clock()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			cs.size -= int64(len(item.Data))
			delete(cs.cache, key)
		}
	}
}

// evictOldestLocked удаляет элемент с ближайшим сроком действия, кроме keep.
func (cs *CacheStore) evictOldestLocked(keep string) {
	var oldestKey string
	var oldest time.Time
	for key, item := range cs.cache {
		if key == keep {
			continue
		}
		if oldestKey == "" || item.ExpiresAt.Before(oldest) {
			oldestKey, oldest = key, item.ExpiresAt
		}
	}
	if oldestKey == "" {
		return
	}
	cs.size -= int64(len(cs.cache[oldestKey].Data))
	delete(cs.cache, oldestKey)
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}
