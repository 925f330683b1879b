// Package filters provides the chat-scoped trigger→reply table.
package filters

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"modguard/internal/store"
)

var (
	// ErrEmpty rejects filters with an empty trigger or reply.
	ErrEmpty = errors.New("trigger and reply must not be empty")
	// ErrNotFound reports removal of a trigger that is not configured.
	ErrNotFound = errors.New("no such filter")
)

// Entry is one configured filter. Triggers are stored lowercased and are
// unique per chat.
type Entry struct {
	Trigger string
	Reply   string
}

// Table persists filters in the store under groups/{chat}/filters.
type Table struct {
	store store.Store
}

// New creates a Table over st.
func New(st store.Store) *Table {
	return &Table{store: st}
}

// Add stores a filter, overwriting any existing entry for the trigger.
func (t *Table) Add(ctx context.Context, chatID int64, trigger, reply string) error {
	trigger = strings.ToLower(strings.TrimSpace(trigger))
	reply = strings.TrimSpace(reply)
	if trigger == "" || reply == "" {
		return ErrEmpty
	}
	return t.store.Set(ctx, entryPath(chatID, trigger), reply)
}

// Remove deletes a filter, reporting ErrNotFound for absent triggers.
func (t *Table) Remove(ctx context.Context, chatID int64, trigger string) error {
	trigger = strings.ToLower(strings.TrimSpace(trigger))

	existing, err := t.store.Get(ctx, entryPath(chatID, trigger))
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return t.store.Delete(ctx, entryPath(chatID, trigger))
}

// List returns the chat's filters sorted by trigger; Match scans in the
// same order.
func (t *Table) List(ctx context.Context, chatID int64) ([]Entry, error) {
	raw, err := t.store.Get(ctx, filtersPath(chatID))
	if err != nil {
		return nil, err
	}

	tree, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}

	entries := make([]Entry, 0, len(tree))
	for _, trigger := range store.SortedKeys(tree) {
		reply := cast.ToString(tree[trigger])
		if reply == "" {
			continue
		}
		entries = append(entries, Entry{Trigger: trigger, Reply: reply})
	}
	return entries, nil
}

// Match returns the reply of the first filter (in trigger order) whose
// trigger is a substring of loweredText.
func (t *Table) Match(ctx context.Context, chatID int64, loweredText string) (string, bool, error) {
	entries, err := t.List(ctx, chatID)
	if err != nil {
		return "", false, err
	}

	for _, e := range entries {
		if strings.Contains(loweredText, e.Trigger) {
			return e.Reply, true, nil
		}
	}
	return "", false, nil
}

func filtersPath(chatID int64) string {
	return "groups/" + strconv.FormatInt(chatID, 10) + "/filters"
}

func entryPath(chatID int64, trigger string) string {
	return store.Path("groups", strconv.FormatInt(chatID, 10), "filters", trigger)
}
