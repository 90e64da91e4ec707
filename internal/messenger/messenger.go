// Package messenger wraps the outbound Telegram capabilities the bot needs
// behind a small, SDK-neutral surface.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/logging"
)

// botAPI is the subset of *bot.Bot used for outbound calls.
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error)
	BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error)
	UnbanChatMember(ctx context.Context, params *bot.UnbanChatMemberParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	ApproveChatJoinRequest(ctx context.Context, params *bot.ApproveChatJoinRequestParams) (bool, error)
}

// Telegram implements the messenger capabilities on top of go-telegram/bot.
type Telegram struct {
	api    botAPI
	logger *logrus.Entry
}

// New wraps a bot client. A nil logger falls back to the global logger.
func New(api botAPI, logger *logrus.Entry) (*Telegram, error) {
	if api == nil {
		return nil, errors.New("telegram api is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Telegram{api: api, logger: logger}, nil
}

// SendText sends a plain text message and returns its message id.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (int, error) {
	options := Apply(opts...)

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if len(options.Keyboard) > 0 {
		params.ReplyMarkup = options.Keyboard.Markup()
	}
	if options.ReplyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: options.ReplyTo}
	}

	msg, err := t.api.SendMessage(ctx, params)
	if err != nil {
		return 0, t.fail("send_message", chatID, 0, err)
	}
	if msg == nil {
		return 0, nil
	}

	return msg.ID, nil
}

// DeleteMessage removes a message from a chat.
func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := t.api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return t.fail("delete_message", chatID, 0, err)
	}
	return nil
}

// RestrictMember revokes send permissions until the given instant, which the
// platform enforces.
func (t *Telegram) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	_, err := t.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: &models.ChatPermissions{},
		UntilDate:   int(until.Unix()),
	})
	if err != nil {
		return t.fail("restrict_member", chatID, userID, err)
	}
	return nil
}

// LiftRestrictions gives a muted member back the ordinary send permissions.
func (t *Telegram) LiftRestrictions(ctx context.Context, chatID, userID int64) error {
	_, err := t.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID: chatID,
		UserID: userID,
		Permissions: &models.ChatPermissions{
			CanSendMessages:       true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	})
	if err != nil {
		return t.fail("lift_restrictions", chatID, userID, err)
	}
	return nil
}

// KickMember removes a member and immediately unbans them so they may rejoin.
func (t *Telegram) KickMember(ctx context.Context, chatID, userID int64) error {
	if err := t.BanMember(ctx, chatID, userID); err != nil {
		return err
	}
	return t.UnbanMember(ctx, chatID, userID)
}

// BanMember removes a member permanently.
func (t *Telegram) BanMember(ctx context.Context, chatID, userID int64) error {
	if _, err := t.api.BanChatMember(ctx, &bot.BanChatMemberParams{ChatID: chatID, UserID: userID}); err != nil {
		return t.fail("ban_member", chatID, userID, err)
	}
	return nil
}

// UnbanMember lifts a ban; it is a no-op for users who are not banned.
func (t *Telegram) UnbanMember(ctx context.Context, chatID, userID int64) error {
	_, err := t.api.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		return t.fail("unban_member", chatID, userID, err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query, optionally with a toast.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := t.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		t.logger.WithFields(logging.Fields{
			"event":       "messenger_failed",
			"operation":   "answer_callback",
			"callback_id": callbackID,
		}).WithError(err).Warn("telegram call failed")
		return fmt.Errorf("answer_callback: %w", err)
	}
	return nil
}

// ApproveJoinRequest accepts a pending join request.
func (t *Telegram) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	if _, err := t.api.ApproveChatJoinRequest(ctx, &bot.ApproveChatJoinRequestParams{ChatID: chatID, UserID: userID}); err != nil {
		return t.fail("approve_join_request", chatID, userID, err)
	}
	return nil
}

func (t *Telegram) fail(operation string, chatID, userID int64, err error) error {
	fields := logging.Fields{
		"event":     "messenger_failed",
		"operation": operation,
		"chat_id":   chatID,
	}
	if userID != 0 {
		fields["user_id"] = userID
	}
	t.logger.WithFields(fields).WithError(err).Warn("telegram call failed")

	return fmt.Errorf("%s: %w", operation, err)
}
