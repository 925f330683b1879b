// Package flood provides per-chat, per-user sliding-window message counting.
package flood

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// windowDuration is the trailing window messages are counted over.
	windowDuration = 10 * time.Second
	// cleanupInterval is how often idle entries are swept.
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long an entry may sit unused before the sweep drops it.
	idleTimeout = 10 * time.Minute
)

type key struct {
	chatID int64
	userID int64
}

// entry holds one (chat, user) window. Its mutex serializes calls for the
// same key; distinct keys share nothing but the lock-free map.
type entry struct {
	mu       sync.Mutex
	times    []time.Time
	lastSeen time.Time
}

// Floodgate tracks message timestamps per (chat, user) over a trailing
// 10-second window. Window state is in-process only and is lost on restart.
type Floodgate struct {
	entries     *xsync.MapOf[key, *entry]
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a Floodgate and starts its idle-entry sweeper.
func New() *Floodgate {
	fg := &Floodgate{
		entries:     xsync.NewMapOf[key, *entry](),
		stopCleanup: make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background sweeper.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stopCleanup) })
}

// RecordAndCount appends now to the (chatID, userID) window, evicts entries
// older than the window start, and returns the resulting count (including
// the message just recorded).
//
// now should carry Go's monotonic clock reading (any time.Time from
// time.Now() does); eviction compares durations, so wall-clock adjustments
// cannot widen or shrink the window.
func (fg *Floodgate) RecordAndCount(chatID, userID int64, now time.Time) int {
	e, _ := fg.entries.LoadOrCompute(key{chatID, userID}, func() *entry {
		return &entry{}
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeen = now
	e.times = append(e.times, now)

	// Evict from the front; timestamps are append-ordered per key, so
	// nothing recorded after the cutoff is ever dropped.
	start := 0
	for start < len(e.times) && now.Sub(e.times[start]) > windowDuration {
		start++
	}
	if start > 0 {
		e.times = append(e.times[:0], e.times[start:]...)
	}

	return len(e.times)
}

// Reset clears the window for (chatID, userID). The pipeline calls this
// after issuing a flood mute so the next message counts from one again.
func (fg *Floodgate) Reset(chatID, userID int64) {
	e, ok := fg.entries.Load(key{chatID, userID})
	if !ok {
		return
	}

	e.mu.Lock()
	e.times = e.times[:0]
	e.mu.Unlock()
}

// Size returns the number of tracked (chat, user) windows.
func (fg *Floodgate) Size() int {
	return fg.entries.Size()
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.sweep(time.Now())
		case <-fg.stopCleanup:
			return
		}
	}
}

func (fg *Floodgate) sweep(now time.Time) {
	fg.entries.Range(func(k key, e *entry) bool {
		e.mu.Lock()
		idle := now.Sub(e.lastSeen) > idleTimeout
		e.mu.Unlock()
		if idle {
			fg.entries.Delete(k)
		}
		return true
	})
}
