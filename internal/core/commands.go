package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"modguard/internal/admin"
	"modguard/internal/chat"
	"modguard/internal/filters"
	"modguard/internal/groups"
	"modguard/internal/history"
	"modguard/internal/i18n"
	"modguard/internal/store"
	"modguard/pkg/text"
)

// Request is one parsed admin command invocation. The transport fills it
// from the platform message; the core never sees raw command text.
type Request struct {
	ChatID    int64
	ChatTitle string
	MessageID string
	Invoker   chat.User
	Target    *chat.User // sender of the replied-to message, when present
	Args      []string
	ArgTail   string // raw argument tail, whitespace-trimmed
}

// Reply is the response sent back to the invoking chat.
type Reply struct {
	Text   string
	Format chat.Format
}

// Commands implements the admin command surface. Argument validation runs
// first, then the admin gate, then the mutation: a denied or malformed
// command performs zero store writes.
type Commands struct {
	gate     *admin.Gate
	groups   *groups.Loader
	filters  *filters.Table
	history  *history.Recorder
	store    store.Store
	platform chat.Platform
	audit    *Auditor
	loc      *i18n.Localizer
	logger   *zap.Logger
}

// NewCommands creates the command surface.
func NewCommands(
	gate *admin.Gate,
	loader *groups.Loader,
	table *filters.Table,
	recorder *history.Recorder,
	st store.Store,
	platform chat.Platform,
	audit *Auditor,
	loc *i18n.Localizer,
	logger *zap.Logger,
) *Commands {
	return &Commands{
		gate:     gate,
		groups:   loader,
		filters:  table,
		history:  recorder,
		store:    st,
		platform: platform,
		audit:    audit,
		loc:      loc,
		logger:   logger,
	}
}

// Dispatch routes a command by name. The second return is false for
// commands this surface does not know.
func (c *Commands) Dispatch(ctx context.Context, command string, req *Request) (Reply, bool) {
	switch command {
	case "start":
		return Reply{Text: c.loc.T("msg.start")}, true
	case "help":
		return Reply{Text: c.loc.T("msg.help")}, true
	case "about":
		return Reply{Text: c.loc.T("msg.about")}, true
	case "setwelcome":
		return c.setGreeting(ctx, req, "welcome_text", "set welcome message", "/setwelcome <text>", "welcome.set", "📝 Welcome message updated by %s: %s"), true
	case "setgoodbye":
		return c.setGreeting(ctx, req, "goodbye_text", "set goodbye message", "/setgoodbye <text>", "goodbye.set", "📤 Goodbye message updated by %s: %s"), true
	case "welcome":
		return c.toggleGreeting(ctx, req, "welcome_on", "toggle welcome", "/welcome on|off", "Welcome messages"), true
	case "goodbye":
		return c.toggleGreeting(ctx, req, "goodbye_on", "toggle goodbye", "/goodbye on|off", "Goodbye messages"), true
	case "setflood":
		return c.setFlood(ctx, req), true
	case "addfilter":
		return c.addFilter(ctx, req), true
	case "delfilter":
		return c.delFilter(ctx, req), true
	case "filters":
		return c.listFilters(ctx, req), true
	case "setlog":
		return c.setLog(ctx, req), true
	case "unsetlog":
		return c.unsetLog(ctx, req), true
	case "logstatus":
		return c.logStatus(ctx, req), true
	case "ban":
		return c.ban(ctx, req), true
	case "unban":
		return c.unban(ctx, req), true
	case "kick":
		return c.kick(ctx, req), true
	case "mute":
		return c.restrict(ctx, req, "mute", false, "mod.muted", "🔇 %s muted by %s."), true
	case "unmute":
		return c.restrict(ctx, req, "unmute", true, "mod.unmuted", "🔊 %s unmuted by %s."), true
	case "promote":
		return c.promote(ctx, req), true
	case "demote":
		return c.demote(ctx, req), true
	case "history":
		return c.names(ctx, req), true
	default:
		return Reply{}, false
	}
}

func (c *Commands) setGreeting(ctx context.Context, req *Request, field, verb, usage, replyKey, auditFmt string) Reply {
	if req.ArgTail == "" {
		return c.usage(usage)
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied(verb)
	}

	if err := c.store.Update(ctx, groups.GroupPath(req.ChatID), map[string]any{field: req.ArgTail}); err != nil {
		return c.storeFailure(req, field, err)
	}
	c.groups.Invalidate(req.ChatID)

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf(auditFmt, Mention(req.Invoker), EscapeHTML(req.ArgTail)))
	return Reply{Text: c.loc.T(replyKey, req.ArgTail)}
}

func (c *Commands) toggleGreeting(ctx context.Context, req *Request, field, verb, usage, label string) Reply {
	if len(req.Args) == 0 {
		return c.usage(usage)
	}
	on, err := text.ParseOnOff(req.Args[0])
	if err != nil {
		return c.usage(usage)
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied(verb)
	}

	if err := c.store.Update(ctx, groups.GroupPath(req.ChatID), map[string]any{field: on}); err != nil {
		return c.storeFailure(req, field, err)
	}
	c.groups.Invalidate(req.ChatID)

	state := "disabled"
	if on {
		state = "enabled"
	}
	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🔔 %s %s by %s.", label, state, Mention(req.Invoker)))
	return Reply{Text: c.loc.T("toggle", label, state)}
}

func (c *Commands) setFlood(ctx context.Context, req *Request) Reply {
	if len(req.Args) == 0 {
		return c.usage("/setflood <number>")
	}
	limit, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return Reply{Text: c.loc.T("flood.nan")}
	}
	if limit < 1 {
		return Reply{Text: c.loc.T("flood.toolow")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("set flood limit")
	}

	if err := c.store.Update(ctx, groups.GroupPath(req.ChatID), map[string]any{"flood_limit": limit}); err != nil {
		return c.storeFailure(req, "flood_limit", err)
	}
	c.groups.Invalidate(req.ChatID)

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🌊 Flood limit set to %d by %s.", limit, Mention(req.Invoker)))
	return Reply{Text: c.loc.T("flood.set", limit)}
}

func (c *Commands) addFilter(ctx context.Context, req *Request) Reply {
	if len(req.Args) < 2 {
		return c.usage("/addfilter <word> <reply>")
	}
	trigger := req.Args[0]
	replyText := strings.TrimSpace(strings.Join(req.Args[1:], " "))
	if replyText == "" {
		return Reply{Text: c.loc.T("filter.empty_reply")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("add filters")
	}

	if err := c.filters.Add(ctx, req.ChatID, trigger, replyText); err != nil {
		if errors.Is(err, filters.ErrEmpty) {
			return Reply{Text: c.loc.T("filter.empty_reply")}
		}
		return c.storeFailure(req, "filters", err)
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🛡️ Filter '<b>%s</b>' added by %s.",
		EscapeHTML(trigger), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("filter.added", trigger)}
}

func (c *Commands) delFilter(ctx context.Context, req *Request) Reply {
	if len(req.Args) == 0 {
		return c.usage("/delfilter <word>")
	}
	trigger := req.Args[0]
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("delete filters")
	}

	if err := c.filters.Remove(ctx, req.ChatID, trigger); err != nil {
		if errors.Is(err, filters.ErrNotFound) {
			return Reply{Text: c.loc.T("filter.notfound", trigger)}
		}
		return c.storeFailure(req, "filters", err)
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🧹 Filter '<b>%s</b>' removed by %s.",
		EscapeHTML(trigger), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("filter.removed", trigger)}
}

func (c *Commands) listFilters(ctx context.Context, req *Request) Reply {
	entries, err := c.filters.List(ctx, req.ChatID)
	if err != nil {
		return c.storeFailure(req, "filters", err)
	}
	if len(entries) == 0 {
		return Reply{Text: c.loc.T("filters.none")}
	}

	var b strings.Builder
	b.WriteString(c.loc.T("filters.header"))
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("\n• %s → %s", e.Trigger, e.Reply))
	}
	return Reply{Text: b.String()}
}

func (c *Commands) setLog(ctx context.Context, req *Request) Reply {
	if len(req.Args) == 0 {
		return c.usage("/setlog <chat_id>")
	}
	target, err := text.ParseChatID(req.Args[0])
	if err != nil {
		return c.usage("/setlog <chat_id>")
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("set log channel")
	}

	if err := c.store.Update(ctx, groups.GroupPath(req.ChatID), map[string]any{"log_channel": target}); err != nil {
		return c.storeFailure(req, "log_channel", err)
	}
	c.groups.Invalidate(req.ChatID)

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🗒️ Log channel updated by %s to %d.",
		Mention(req.Invoker), target))
	return Reply{Text: c.loc.T("log.set", req.Args[0])}
}

func (c *Commands) unsetLog(ctx context.Context, req *Request) Reply {
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("unset log channel")
	}

	// The removal notice goes to the channel being removed, so send it
	// before the delete.
	if c.groups.Config(ctx, req.ChatID).LogChannel != 0 {
		c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🗒️ Log channel removed by %s.", Mention(req.Invoker)))
	}

	if err := c.store.Delete(ctx, groups.GroupPath(req.ChatID)+"/log_channel"); err != nil {
		return c.storeFailure(req, "log_channel", err)
	}
	c.groups.Invalidate(req.ChatID)

	return Reply{Text: c.loc.T("log.removed")}
}

func (c *Commands) logStatus(ctx context.Context, req *Request) Reply {
	if target := c.groups.Config(ctx, req.ChatID).LogChannel; target != 0 {
		return Reply{Text: c.loc.T("log.status", target)}
	}
	return Reply{Text: c.loc.T("log.none")}
}

func (c *Commands) ban(ctx context.Context, req *Request) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", "ban")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	if err := c.store.Set(ctx, groups.BlacklistPath(req.ChatID, req.Target.ID), true); err != nil {
		return c.storeFailure(req, "blacklist", err)
	}
	c.removeQuietly(ctx, req.ChatID, req.Target.ID)

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("🚫 %s banned by %s.",
		Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("mod.banned", Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) unban(ctx context.Context, req *Request) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", "unban")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	// Delete of an absent blacklist entry is a no-op: unban is idempotent.
	if err := c.store.Delete(ctx, groups.BlacklistPath(req.ChatID, req.Target.ID)); err != nil {
		return c.storeFailure(req, "blacklist", err)
	}
	if err := c.platform.ReinstateMember(ctx, req.ChatID, req.Target.ID); err != nil {
		c.logger.Debug("Failed to reinstate user",
			zap.Int64("user_id", req.Target.ID),
			zap.Error(err))
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("✅ %s unbanned by %s.",
		Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("mod.unbanned", Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) kick(ctx context.Context, req *Request) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", "kick")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	// Remove-then-reinstate kicks without a lasting ban.
	c.removeQuietly(ctx, req.ChatID, req.Target.ID)
	if err := c.platform.ReinstateMember(ctx, req.ChatID, req.Target.ID); err != nil {
		c.logger.Debug("Failed to reinstate kicked user",
			zap.Int64("user_id", req.Target.ID),
			zap.Error(err))
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("👢 %s kicked by %s.",
		Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("mod.kicked", Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) restrict(ctx context.Context, req *Request, name string, canSend bool, replyKey, auditFmt string) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", name)}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	if err := c.platform.RestrictMember(ctx, req.ChatID, req.Target.ID, canSend); err != nil {
		c.logger.Warn("Restrict action failed",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.Target.ID),
			zap.Error(err))
		return Reply{Text: c.loc.T("err.action")}
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf(auditFmt, Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T(replyKey, Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) promote(ctx context.Context, req *Request) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", "promote")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	if err := c.gate.Grant(ctx, req.Target.ID); err != nil {
		return c.storeFailure(req, "admins", err)
	}
	if err := c.platform.PromoteMember(ctx, req.ChatID, req.Target.ID, chat.DefaultAdminPermissions()); err != nil {
		c.logger.Warn("Promote action failed",
			zap.Int64("user_id", req.Target.ID),
			zap.Error(err))
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("⭐ %s promoted by %s.",
		Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("mod.promoted", Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) demote(ctx context.Context, req *Request) Reply {
	if req.Target == nil {
		return Reply{Text: c.loc.T("mod.reply_needed", "demote")}
	}
	if !c.gate.IsAdmin(ctx, req.Invoker.ID) {
		return c.denied("use this command")
	}

	if err := c.gate.Revoke(ctx, req.Target.ID); err != nil {
		return c.storeFailure(req, "admins", err)
	}
	if err := c.platform.DemoteMember(ctx, req.ChatID, req.Target.ID, chat.PermissionSet{}); err != nil {
		c.logger.Warn("Demote action failed",
			zap.Int64("user_id", req.Target.ID),
			zap.Error(err))
	}

	c.audit.Log(ctx, req.ChatID, fmt.Sprintf("✅ %s demoted by %s.",
		Mention(*req.Target), Mention(req.Invoker)))
	return Reply{Text: c.loc.T("mod.demoted", Mention(*req.Target)), Format: chat.FormatHTML}
}

func (c *Commands) names(ctx context.Context, req *Request) Reply {
	if len(req.Args) > 0 {
		username := strings.TrimPrefix(req.Args[0], "@")
		_, entries, found, err := c.history.LookupBySubstring(ctx, username)
		if err != nil {
			return c.storeFailure(req, "history", err)
		}
		if !found {
			return Reply{Text: c.loc.T("history.notfound")}
		}
		return Reply{Text: c.loc.T("history.user", username, strings.Join(entries, "\n"))}
	}

	entries, err := c.history.Get(ctx, req.Invoker.ID)
	if err != nil {
		return c.storeFailure(req, "history", err)
	}
	if len(entries) == 0 {
		return Reply{Text: c.loc.T("history.self.none")}
	}
	return Reply{Text: c.loc.T("history.self", strings.Join(entries, "\n"))}
}

// removeQuietly bans a member on the platform, demoting failures to debug:
// the store state is authoritative and enforced on the next message anyway.
func (c *Commands) removeQuietly(ctx context.Context, chatID, userID int64) {
	if err := c.platform.RemoveMember(ctx, chatID, userID); err != nil {
		c.logger.Debug("Failed to remove user",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

func (c *Commands) storeFailure(req *Request, what string, err error) Reply {
	c.logger.Warn("Store write failed",
		zap.Int64("chat_id", req.ChatID),
		zap.String("subject", what),
		zap.Error(err))
	return Reply{Text: c.loc.T("err.store")}
}

func (c *Commands) denied(what string) Reply {
	return Reply{Text: c.loc.T("denied", what)}
}

func (c *Commands) usage(u string) Reply {
	return Reply{Text: c.loc.T("usage", u)}
}
