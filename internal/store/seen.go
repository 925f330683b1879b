package store

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenStore suppresses duplicate update deliveries. Telegram re-delivers
// updates after reconnects; without suppression a re-delivered message would
// double-count in the flood window. The bloom filter gives a cheap negative
// path, the map is authoritative, and the LRU bounds memory by evicting the
// oldest keys.
type SeenStore struct {
	keys              map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxEntries        int
	falsePositiveRate float64
}

// NewSeenStore creates a seen-store holding at most maxEntries keys.
func NewSeenStore(maxEntries int, falsePositiveRate float64) *SeenStore {
	lruCache, _ := lru.New[string, struct{}](maxEntries)

	return &SeenStore{
		keys:              make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxEntries), falsePositiveRate),
		lru:               lruCache,
		maxEntries:        maxEntries,
		falsePositiveRate: falsePositiveRate,
	}
}

// CheckAndMark records the (chatID, messageID) pair and reports whether it
// had been seen before.
func (ss *SeenStore) CheckAndMark(chatID int64, messageID string) bool {
	key := fmt.Sprintf("%d:%s", chatID, messageID)

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.bloom.TestString(key) {
		if _, exists := ss.keys[key]; exists {
			return true
		}
	}

	ss.keys[key] = struct{}{}
	ss.bloom.AddString(key)
	ss.lru.Add(key, struct{}{})

	if len(ss.keys) > ss.maxEntries {
		ss.evictOldest()
	}
	return false
}

// Size returns the number of keys currently tracked.
func (ss *SeenStore) Size() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.keys)
}

func (ss *SeenStore) evictOldest() {
	oldestKey, _, ok := ss.lru.GetOldest()
	if !ok {
		return
	}
	delete(ss.keys, oldestKey)
	ss.lru.Remove(oldestKey)
	// The bloom filter cannot forget evicted keys; a false "seen" for an
	// evicted key only skips one already-processed message.
}
