package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"modguard/internal/chat"
	"modguard/internal/groups"
	"modguard/internal/history"
	"modguard/pkg/text"
)

// Greeter handles membership changes: welcome/goodbye messages, name
// history snapshots and join/leave audit lines.
type Greeter struct {
	groups   *groups.Loader
	history  *history.Recorder
	platform chat.Platform
	audit    *Auditor
	logger   *zap.Logger
}

// NewGreeter creates a Greeter.
func NewGreeter(
	loader *groups.Loader,
	recorder *history.Recorder,
	platform chat.Platform,
	audit *Auditor,
	logger *zap.Logger,
) *Greeter {
	return &Greeter{
		groups:   loader,
		history:  recorder,
		platform: platform,
		audit:    audit,
		logger:   logger,
	}
}

// Handle processes one membership-change event.
func (g *Greeter) Handle(ctx context.Context, ev *chat.Event) {
	cfg := g.groups.Config(ctx, ev.ChatID)

	for i := range ev.Joined {
		member := ev.Joined[i]
		g.recordName(ctx, member)

		if cfg.WelcomeOn {
			greeting := text.FormatNameVars(cfg.WelcomeText,
				member.FirstName, member.LastName, member.Username)
			g.reply(ctx, ev, greeting)
		}

		g.audit.Log(ctx, ev.ChatID, fmt.Sprintf("👋 %s joined %s.",
			Mention(member), EscapeHTML(chatTitle(ev))))
	}

	if ev.Left != nil {
		member := *ev.Left
		g.recordName(ctx, member)

		if cfg.GoodbyeOn {
			farewell := text.FormatNameVars(cfg.GoodbyeText,
				member.FirstName, member.LastName, member.Username)
			g.reply(ctx, ev, farewell)
		}

		g.audit.Log(ctx, ev.ChatID, fmt.Sprintf("👋 %s left %s.",
			Mention(member), EscapeHTML(chatTitle(ev))))
	}
}

func (g *Greeter) recordName(ctx context.Context, member chat.User) {
	name := text.DisplayName(member.FirstName, member.LastName, member.Username)
	if err := g.history.Record(ctx, member.ID, name); err != nil {
		g.logger.Warn("Failed to record name history",
			zap.Int64("user_id", member.ID),
			zap.Error(err))
	}
}

func (g *Greeter) reply(ctx context.Context, ev *chat.Event, message string) {
	if err := g.platform.ReplyTo(ctx, ev.ChatID, ev.MessageID, message, chat.FormatPlain); err != nil {
		g.logger.Warn("Failed to send greeting",
			zap.Int64("chat_id", ev.ChatID),
			zap.Error(err))
	}
}

func chatTitle(ev *chat.Event) string {
	if ev.ChatTitle != "" {
		return ev.ChatTitle
	}
	return "the chat"
}
