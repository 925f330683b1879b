// Package chat defines the normalized event model and the narrow interface
// to the chat platform. The moderation core depends only on this package,
// never on a concrete transport.
package chat

import (
	"context"
)

// User identifies a chat participant.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	LastName  string
	Username  string
}

// Event is one normalized incoming chat event: either a regular message or
// a membership change (join/leave service message).
type Event struct {
	ChatID    int64
	ChatTitle string
	MessageID string
	Sender    User
	Text      string // message text or caption, whichever is present
	Joined    []User // set for join service messages
	Left      *User  // set for leave service messages
}

// IsService reports whether the event is a membership change rather than a
// message.
func (e *Event) IsService() bool {
	return len(e.Joined) > 0 || e.Left != nil
}

// Format selects the parse mode of an outgoing message.
type Format string

// Supported outgoing message formats.
const (
	FormatPlain Format = ""
	FormatHTML  Format = "HTML"
)

// PermissionSet carries the administrator permissions granted on promote
// and cleared on demote.
type PermissionSet struct {
	CanChangeInfo      bool
	CanDeleteMessages  bool
	CanInviteUsers     bool
	CanRestrictMembers bool
	CanPinMessages     bool
	CanPromoteMembers  bool
}

// DefaultAdminPermissions is the permission set granted by a promote.
func DefaultAdminPermissions() PermissionSet {
	return PermissionSet{
		CanChangeInfo:      true,
		CanDeleteMessages:  true,
		CanInviteUsers:     true,
		CanRestrictMembers: true,
		CanPinMessages:     true,
	}
}

// Platform is the narrow interface to platform moderation actions. Every
// call is one-shot: callers log failures and never retry within the same
// pipeline pass.
type Platform interface {
	// SendMessage sends text to a chat.
	SendMessage(ctx context.Context, chatID int64, text string, format Format) error

	// ReplyTo sends text as a reply to an existing message.
	ReplyTo(ctx context.Context, chatID int64, messageID, text string, format Format) error

	// RemoveMember bans a user from a chat.
	RemoveMember(ctx context.Context, chatID, userID int64) error

	// ReinstateMember lifts a ban, allowing the user to rejoin.
	ReinstateMember(ctx context.Context, chatID, userID int64) error

	// RestrictMember mutes (canSend=false) or unmutes (canSend=true) a user.
	RestrictMember(ctx context.Context, chatID, userID int64, canSend bool) error

	// PromoteMember grants administrator permissions.
	PromoteMember(ctx context.Context, chatID, userID int64, perms PermissionSet) error

	// DemoteMember clears administrator permissions.
	DemoteMember(ctx context.Context, chatID, userID int64, perms PermissionSet) error
}
