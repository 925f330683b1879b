// Package telegram provides the Telegram transport using the go-telegram/bot
// library. It converts updates into normalized chat events and implements the
// chat.Platform moderation actions.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"modguard/internal/chat"
	"modguard/internal/core"
	"modguard/internal/store"
	"modguard/pkg/text"
)

// Frontend connects the moderation core to the Telegram Bot API.
type Frontend struct {
	token    string
	logger   *zap.Logger
	pipeline *core.Pipeline
	commands *core.Commands
	seen     *store.SeenStore

	bot      *bot.Bot
	username string
}

// NewFrontend creates the Telegram frontend. The bot connection is
// established in Start; the moderation core is attached with Bind before
// Start, since the core in turn uses the frontend as its chat.Platform.
func NewFrontend(token string, seen *store.SeenStore, logger *zap.Logger) *Frontend {
	return &Frontend{
		token:  token,
		logger: logger,
		seen:   seen,
	}
}

// Bind attaches the pipeline and command surface updates are routed to.
func (f *Frontend) Bind(pipeline *core.Pipeline, commands *core.Commands) {
	f.pipeline = pipeline
	f.commands = commands
}

// Start connects to the Bot API and processes updates until ctx is cancelled.
func (f *Frontend) Start(ctx context.Context) error {
	b, err := bot.New(f.token, bot.WithDefaultHandler(f.handleUpdate))
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	f.bot = b

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot: %w", err)
	}
	f.username = me.Username

	f.logger.Info("Starting Telegram frontend",
		zap.String("bot_username", f.username))

	b.Start(ctx)
	return nil
}

// handleUpdate processes one incoming Telegram update.
func (f *Frontend) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	// Telegram re-delivers updates after reconnects; duplicates must not
	// double-count in the flood window.
	if f.seen.CheckAndMark(msg.Chat.ID, strconv.Itoa(msg.ID)) {
		return
	}

	ev := toEvent(msg)

	if command, req, ok := f.parseCommand(msg, ev); ok {
		if reply, known := f.commands.Dispatch(ctx, command, req); known {
			if err := f.ReplyTo(ctx, ev.ChatID, ev.MessageID, reply.Text, reply.Format); err != nil {
				f.logger.Warn("Failed to send command reply",
					zap.Int64("chat_id", ev.ChatID),
					zap.String("command", command),
					zap.Error(err))
			}
			return
		}
		// An unrecognized command is an ordinary message as far as
		// moderation goes: it is still ban-checked, flood-counted and
		// filter-matched below.
	}

	f.pipeline.Handle(ctx, ev)
}

// parseCommand recognizes a leading "/command" in a non-service message and
// builds the core request for it. Commands addressed to another bot
// ("/cmd@OtherBot") are not ours and are treated as plain text.
func (f *Frontend) parseCommand(msg *models.Message, ev *chat.Event) (string, *core.Request, bool) {
	if ev.IsService() || !strings.HasPrefix(ev.Text, "/") {
		return "", nil, false
	}

	fields := text.SplitArgs(ev.Text)
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		if !strings.EqualFold(command[at+1:], f.username) {
			return "", nil, false
		}
		command = command[:at]
	}

	req := &core.Request{
		ChatID:    ev.ChatID,
		ChatTitle: ev.ChatTitle,
		MessageID: ev.MessageID,
		Invoker:   ev.Sender,
		Args:      fields[1:],
		ArgTail:   strings.TrimSpace(strings.TrimPrefix(ev.Text, fields[0])),
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target := toUser(msg.ReplyToMessage.From)
		req.Target = &target
	}

	return strings.ToLower(command), req, true
}

func toEvent(msg *models.Message) *chat.Event {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	ev := &chat.Event{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		MessageID: strconv.Itoa(msg.ID),
		Sender:    toUser(msg.From),
		Text:      text,
	}

	for i := range msg.NewChatMembers {
		ev.Joined = append(ev.Joined, toUser(&msg.NewChatMembers[i]))
	}
	if msg.LeftChatMember != nil {
		left := toUser(msg.LeftChatMember)
		ev.Left = &left
	}

	return ev
}

func toUser(u *models.User) chat.User {
	return chat.User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// SendMessage implements chat.Platform.
func (f *Frontend) SendMessage(ctx context.Context, chatID int64, text string, format chat.Format) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if format == chat.FormatHTML {
		params.ParseMode = models.ParseModeHTML
	}

	if _, err := f.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// ReplyTo implements chat.Platform.
func (f *Frontend) ReplyTo(ctx context.Context, chatID int64, messageID, text string, format chat.Format) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if format == chat.FormatHTML {
		params.ParseMode = models.ParseModeHTML
	}
	if id, err := strconv.Atoi(messageID); err == nil {
		params.ReplyParameters = &models.ReplyParameters{MessageID: id}
	}

	if _, err := f.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// RemoveMember implements chat.Platform.
func (f *Frontend) RemoveMember(ctx context.Context, chatID, userID int64) error {
	ok, err := f.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to ban chat member: %w", err)
	}
	if !ok {
		return fmt.Errorf("ban of user %d in chat %d was refused", userID, chatID)
	}
	return nil
}

// ReinstateMember implements chat.Platform.
func (f *Frontend) ReinstateMember(ctx context.Context, chatID, userID int64) error {
	ok, err := f.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		return fmt.Errorf("failed to unban chat member: %w", err)
	}
	if !ok {
		return fmt.Errorf("unban of user %d in chat %d was refused", userID, chatID)
	}
	return nil
}

// RestrictMember implements chat.Platform.
func (f *Frontend) RestrictMember(ctx context.Context, chatID, userID int64, canSend bool) error {
	ok, err := f.bot.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID: chatID,
		UserID: userID,
		Permissions: &models.ChatPermissions{
			CanSendMessages:       canSend,
			CanSendAudios:         canSend,
			CanSendDocuments:      canSend,
			CanSendPhotos:         canSend,
			CanSendVideos:         canSend,
			CanSendVideoNotes:     canSend,
			CanSendVoiceNotes:     canSend,
			CanSendOtherMessages:  canSend,
			CanAddWebPagePreviews: canSend,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to restrict chat member: %w", err)
	}
	if !ok {
		return fmt.Errorf("restriction of user %d in chat %d was refused", userID, chatID)
	}
	return nil
}

// PromoteMember implements chat.Platform.
func (f *Frontend) PromoteMember(ctx context.Context, chatID, userID int64, perms chat.PermissionSet) error {
	return f.promote(ctx, chatID, userID, perms, "promote")
}

// DemoteMember implements chat.Platform. Demotion is a promote call with all
// permissions cleared.
func (f *Frontend) DemoteMember(ctx context.Context, chatID, userID int64, perms chat.PermissionSet) error {
	return f.promote(ctx, chatID, userID, perms, "demote")
}

func (f *Frontend) promote(ctx context.Context, chatID, userID int64, perms chat.PermissionSet, what string) error {
	ok, err := f.bot.PromoteChatMember(ctx, &bot.PromoteChatMemberParams{
		ChatID:             chatID,
		UserID:             userID,
		CanChangeInfo:      perms.CanChangeInfo,
		CanDeleteMessages:  perms.CanDeleteMessages,
		CanInviteUsers:     perms.CanInviteUsers,
		CanRestrictMembers: perms.CanRestrictMembers,
		CanPinMessages:     perms.CanPinMessages,
		CanPromoteMembers:  perms.CanPromoteMembers,
	})
	if err != nil {
		return fmt.Errorf("failed to %s chat member: %w", what, err)
	}
	if !ok {
		return fmt.Errorf("%s of user %d in chat %d was refused", what, userID, chatID)
	}
	return nil
}
