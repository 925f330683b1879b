package core

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"modguard/internal/chat"
	"modguard/internal/groups"
)

// Auditor sends best-effort audit lines to a chat's configured log channel.
// A missing channel or a failed send never propagates.
type Auditor struct {
	groups   *groups.Loader
	platform chat.Platform
	logger   *zap.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(loader *groups.Loader, platform chat.Platform, logger *zap.Logger) *Auditor {
	return &Auditor{
		groups:   loader,
		platform: platform,
		logger:   logger,
	}
}

// Log sends text (HTML, already escaped by the caller) to chatID's log
// channel, if one is configured.
func (a *Auditor) Log(ctx context.Context, chatID int64, text string) {
	target := a.groups.Config(ctx, chatID).LogChannel
	if target == 0 {
		return
	}

	if err := a.platform.SendMessage(ctx, target, text, chat.FormatHTML); err != nil {
		a.logger.Warn("Failed to send audit log message",
			zap.Int64("chat_id", chatID),
			zap.Int64("log_channel", target),
			zap.Error(err))
	}
}

// Mention renders an HTML mention link for a user, escaping the
// user-controlled name.
func Mention(u chat.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = fmt.Sprintf("user %d", u.ID)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(name))
}

// EscapeHTML escapes user-controlled text for HTML-formatted messages.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}
