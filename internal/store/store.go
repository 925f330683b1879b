// Package store provides the hierarchical key-value store used for all
// persistent moderation state: admins, per-group settings, filters,
// blacklists and name history.
package store

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the narrow port to the persistent configuration store. Paths are
// "/"-joined segments, e.g. "groups/-100123/flood_limit".
//
// Get returns nil (and no error) when the path is absent. Reading an interior
// node returns the subtree as nested map[string]any. Delete of an absent path
// is a no-op. Append stores value under a fresh, time-ordered child id and
// returns that id.
type Store interface {
	Get(ctx context.Context, path string) (any, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Append(ctx context.Context, path string, value any) (string, error)
}

// invalidKeyChars are characters the store rejects in key segments.
const invalidKeyChars = ".#$[]/"

// SanitizeKey replaces characters that are invalid in a single path segment.
func SanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidKeyChars, r) {
			return '_'
		}
		return r
	}, key)
}

// Path joins pre-sanitized segments into a store path. Each segment is
// sanitized individually so user-controlled values cannot escape their level.
func Path(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, SanitizeKey(s))
	}
	return strings.Join(parts, "/")
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewChildID returns a fresh child id for Append. Ids are lexicographically
// ordered by creation time, so sorting keys recovers insertion order.
func NewChildID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// SortedKeys returns the keys of a subtree map in lexicographic order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
