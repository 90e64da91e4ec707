package messenger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type fakeAPI struct {
	sent       []*bot.SendMessageParams
	deleted    []*bot.DeleteMessageParams
	restricted []*bot.RestrictChatMemberParams
	banned     []*bot.BanChatMemberParams
	unbanned   []*bot.UnbanChatMemberParams
	answered   []*bot.AnswerCallbackQueryParams
	approved   []*bot.ApproveChatJoinRequestParams

	sendErr error
	banErr  error
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, p)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	f.deleted = append(f.deleted, p)
	return true, nil
}

func (f *fakeAPI) RestrictChatMember(_ context.Context, p *bot.RestrictChatMemberParams) (bool, error) {
	f.restricted = append(f.restricted, p)
	return true, nil
}

func (f *fakeAPI) BanChatMember(_ context.Context, p *bot.BanChatMemberParams) (bool, error) {
	f.banned = append(f.banned, p)
	return f.banErr == nil, f.banErr
}

func (f *fakeAPI) UnbanChatMember(_ context.Context, p *bot.UnbanChatMemberParams) (bool, error) {
	f.unbanned = append(f.unbanned, p)
	return true, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.answered = append(f.answered, p)
	return true, nil
}

func (f *fakeAPI) ApproveChatJoinRequest(_ context.Context, p *bot.ApproveChatJoinRequestParams) (bool, error) {
	f.approved = append(f.approved, p)
	return true, nil
}

func newTestMessenger(t *testing.T, api *fakeAPI) (*Telegram, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	m, err := New(api, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return m, hook
}

func TestNewRequiresAPI(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil api")
	}
}

func TestSendTextWithKeyboardAndReply(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestMessenger(t, api)

	id, err := m.SendText(context.Background(), 55, "hello", WithKeyboard(MainMenu()), ReplyTo(9))
	if err != nil {
		t.Fatalf("SendText returned error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected message id 1, got %d", id)
	}

	params := api.sent[0]
	if params.ChatID != int64(55) || params.Text != "hello" {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.ReplyParameters == nil || params.ReplyParameters.MessageID != 9 {
		t.Fatalf("expected reply parameters for message 9, got %+v", params.ReplyParameters)
	}
	markup, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard markup, got %T", params.ReplyMarkup)
	}
	if got := markup.InlineKeyboard[0][0].CallbackData; got != ActionNewComplaint {
		t.Fatalf("expected first button %s, got %s", ActionNewComplaint, got)
	}
}

func TestSendTextWithoutOptions(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestMessenger(t, api)

	if _, err := m.SendText(context.Background(), 1, "plain"); err != nil {
		t.Fatalf("SendText returned error: %v", err)
	}
	if api.sent[0].ReplyMarkup != nil || api.sent[0].ReplyParameters != nil {
		t.Fatalf("expected no markup or reply parameters, got %+v", api.sent[0])
	}
}

func TestSendTextFailureIsLoggedAndReturned(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("Forbidden: bot was blocked by the user")}
	m, hook := newTestMessenger(t, api)

	_, err := m.SendText(context.Background(), 77, "hi")
	if !errors.Is(err, api.sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["event"] != "messenger_failed" || entry.Data["operation"] != "send_message" {
		t.Fatalf("expected messenger_failed log entry, got %+v", entry)
	}
	if entry.Data["chat_id"] != int64(77) {
		t.Fatalf("expected chat_id 77, got %v", entry.Data["chat_id"])
	}
}

func TestRestrictMemberUsesAbsoluteExpiry(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestMessenger(t, api)

	until := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	if err := m.RestrictMember(context.Background(), -100, 42, until); err != nil {
		t.Fatalf("RestrictMember returned error: %v", err)
	}

	params := api.restricted[0]
	if params.UntilDate != int(until.Unix()) {
		t.Fatalf("expected until %d, got %d", until.Unix(), params.UntilDate)
	}
	if params.Permissions == nil || params.Permissions.CanSendMessages {
		t.Fatalf("expected send permission to be revoked, got %+v", params.Permissions)
	}
}

func TestKickMemberBansThenUnbans(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestMessenger(t, api)

	if err := m.KickMember(context.Background(), -100, 42); err != nil {
		t.Fatalf("KickMember returned error: %v", err)
	}
	if len(api.banned) != 1 || len(api.unbanned) != 1 {
		t.Fatalf("expected ban and unban, got %d bans and %d unbans", len(api.banned), len(api.unbanned))
	}
	if !api.unbanned[0].OnlyIfBanned {
		t.Fatalf("expected unban to be limited to banned users")
	}
}

func TestKickMemberStopsWhenBanFails(t *testing.T) {
	api := &fakeAPI{banErr: errors.New("not enough rights")}
	m, _ := newTestMessenger(t, api)

	if err := m.KickMember(context.Background(), -100, 42); err == nil {
		t.Fatalf("expected kick to fail")
	}
	if len(api.unbanned) != 0 {
		t.Fatalf("expected no unban after failed ban")
	}
}

func TestComplaintAdminKeyboardEncodesIDs(t *testing.T) {
	kb := ComplaintAdmin(12, 345)

	if kb[0][0].Data != "reply_complaint_12" || kb[0][1].Data != "close_complaint_12" {
		t.Fatalf("unexpected complaint buttons %+v", kb[0])
	}
	if kb[1][0].Data != "user_info_345" || kb[1][1].Data != "user_history_345" {
		t.Fatalf("unexpected user buttons %+v", kb[1])
	}
}
