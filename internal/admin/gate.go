// Package admin provides the global admin authorization gate.
package admin

import (
	"context"
	"strconv"

	"github.com/spf13/cast"

	"modguard/internal/store"
)

// Gate answers whether a user may perform mutating operations. The admin
// set is global, not per chat.
type Gate struct {
	store store.Store
}

// New creates a Gate over st.
func New(st store.Store) *Gate {
	return &Gate{store: st}
}

// IsAdmin reports membership in the admin set. A failed store read counts
// as not-admin: authorization fails closed.
func (g *Gate) IsAdmin(ctx context.Context, userID int64) bool {
	raw, err := g.store.Get(ctx, adminPath(userID))
	if err != nil {
		return false
	}
	return raw != nil && cast.ToBool(raw)
}

// Grant adds a user to the admin set.
func (g *Gate) Grant(ctx context.Context, userID int64) error {
	return g.store.Set(ctx, adminPath(userID), true)
}

// Revoke removes a user from the admin set. Revoking a non-admin is a no-op.
func (g *Gate) Revoke(ctx context.Context, userID int64) error {
	return g.store.Delete(ctx, adminPath(userID))
}

func adminPath(userID int64) string {
	return "admins/" + strconv.FormatInt(userID, 10)
}
