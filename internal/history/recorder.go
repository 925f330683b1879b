// Package history records per-user display-name history ("sangmata").
package history

import (
	"context"
	"strconv"

	"github.com/spf13/cast"

	"modguard/internal/store"
	"modguard/pkg/text"
)

// Recorder appends display names to an append-only per-user log in the
// store. Only adjacent duplicates are suppressed; a user switching back to
// an earlier name gets a new entry.
type Recorder struct {
	store store.Store
}

// New creates a Recorder over st.
func New(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record appends name to the user's history unless it equals the most
// recent entry.
func (r *Recorder) Record(ctx context.Context, userID int64, name string) error {
	if name == "" {
		return nil
	}

	entries, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) > 0 && entries[len(entries)-1] == name {
		return nil
	}

	_, err = r.store.Append(ctx, historyPath(userID), name)
	return err
}

// Get returns the user's full history in insertion order.
func (r *Recorder) Get(ctx context.Context, userID int64) ([]string, error) {
	raw, err := r.store.Get(ctx, historyPath(userID))
	if err != nil {
		return nil, err
	}

	tree, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}

	entries := make([]string, 0, len(tree))
	for _, id := range store.SortedKeys(tree) {
		if entry := cast.ToString(tree[id]); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// LookupBySubstring finds a user whose history contains needle,
// case-insensitively. When several users match, which one is returned is
// unspecified (user iteration follows map order).
func (r *Recorder) LookupBySubstring(ctx context.Context, needle string) (int64, []string, bool, error) {
	raw, err := r.store.Get(ctx, "users")
	if err != nil {
		return 0, nil, false, err
	}

	users, ok := raw.(map[string]any)
	if !ok {
		return 0, nil, false, nil
	}

	for uid, data := range users {
		node, ok := data.(map[string]any)
		if !ok {
			continue
		}
		tree, ok := node["history"].(map[string]any)
		if !ok {
			continue
		}

		matched := false
		entries := make([]string, 0, len(tree))
		for _, id := range store.SortedKeys(tree) {
			entry := cast.ToString(tree[id])
			if entry == "" {
				continue
			}
			entries = append(entries, entry)
			if text.ContainsFold(entry, needle) {
				matched = true
			}
		}
		if !matched {
			continue
		}

		userID, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			continue
		}
		return userID, entries, true, nil
	}

	return 0, nil, false, nil
}

func historyPath(userID int64) string {
	return "users/" + strconv.FormatInt(userID, 10) + "/history"
}
