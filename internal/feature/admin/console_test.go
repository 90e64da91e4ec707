package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_support_bot/internal/command"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/feature/moderation"
	"tg_support_bot/internal/messenger"
	"tg_support_bot/internal/messenger/messengertest"
	"tg_support_bot/internal/store/memstore"
)

const (
	adminID   = int64(500)
	groupID   = int64(-100777)
	adminChat = adminID
)

type consoleHarness struct {
	console *Console
	store   *memstore.Store
	rec     *messengertest.Recorder
	hook    *logtest.Hook
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()

	store := memstore.New()
	rec := messengertest.New()
	logger, hook := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	workflow, err := complaint.NewWorkflow(store, nil, rec, domain.Admin(adminID), entry)
	if err != nil {
		t.Fatalf("NewWorkflow returned error: %v", err)
	}
	members, err := moderation.NewMembers(rec, store, entry)
	if err != nil {
		t.Fatalf("NewMembers returned error: %v", err)
	}

	console, err := NewConsole(Options{
		Store:      store,
		Complaints: workflow,
		Members:    members,
		Messenger:  rec,
		Admin:      domain.Admin(adminID),
		GroupID:    groupID,
		Logger:     entry,
	})
	if err != nil {
		t.Fatalf("NewConsole returned error: %v", err)
	}

	return &consoleHarness{console: console, store: store, rec: rec, hook: hook}
}

func (h *consoleHarness) run(t *testing.T, chatID int64, text string) string {
	t.Helper()

	cmd, ok := command.Parse(text)
	if !ok {
		t.Fatalf("%q is not a command", text)
	}
	if err := h.console.HandleCommand(context.Background(), chatID, adminID, cmd); err != nil {
		t.Fatalf("HandleCommand(%q) returned error: %v", text, err)
	}
	return h.rec.Last().Text
}

func TestShowPanel(t *testing.T) {
	h := newConsoleHarness(t)

	h.run(t, adminChat, "/admin")

	last := h.rec.Last()
	if !strings.HasPrefix(last.Text, "🔧 Admin Control Panel") {
		t.Fatalf("unexpected panel text %q", last.Text)
	}
	if len(last.Keyboard) == 0 || last.Keyboard[0][0].Data != messenger.ActionComplaints {
		t.Fatalf("expected admin keyboard, got %+v", last.Keyboard)
	}
}

func TestNonAdminCommandsAreIgnored(t *testing.T) {
	h := newConsoleHarness(t)
	cmd, _ := command.Parse("/closegroup")

	if err := h.console.HandleCommand(context.Background(), 42, 42, cmd); err != nil {
		t.Fatalf("HandleCommand returned error: %v", err)
	}
	if len(h.rec.Messages) != 0 {
		t.Fatalf("expected no reply to non-admin, got %+v", h.rec.Messages)
	}
	if _, err := h.store.GetGroupSettings(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected settings untouched, got %v", err)
	}
}

func TestReplyCommand(t *testing.T) {
	h := newConsoleHarness(t)

	h.run(t, adminChat, "/reply 42 Your refund\nis on the way")

	if !h.rec.Contains(42, "Your refund\nis on the way") {
		t.Fatalf("expected multi-line reply delivered, got %+v", h.rec.To(42))
	}
	if h.rec.Last().Text != "✅ Reply sent successfully!" {
		t.Fatalf("expected admin ack, got %q", h.rec.Last().Text)
	}
}

func TestUsageHints(t *testing.T) {
	cases := map[string]string{
		"/reply":               usageReply,
		"/reply abc hi":        usageReply,
		"/reply 42":            usageReply,
		"/addban":              usageAddBan,
		"/removeban   ":        usageRemoveBan,
		"/addresponse foo":     usageAddResponse,
		"/addresponse | x":     usageAddResponse,
		"/removeresponse":      usageRemoveResponse,
		"/setwarnings zero":    usageSetWarnings,
		"/setwarnings -1":      usageSetWarnings,
		"/setmute 0":           usageSetMute,
		"/setmute 527041":      usageSetMute,
		"/setmute 200000000":   usageSetMute,
		"/kick someone":        "❌ Usage: /kick <user_id>",
		"/unknowncmd whatever": msgUnknownCommand,
	}

	for text, want := range cases {
		h := newConsoleHarness(t)
		if got := h.run(t, adminChat, text); got != want {
			t.Fatalf("%q: expected %q, got %q", text, want, got)
		}
	}
}

func TestBannedWordCommands(t *testing.T) {
	h := newConsoleHarness(t)
	ctx := context.Background()

	if got := h.run(t, adminChat, "/addban SPAM"); got != "✅ Added \"spam\" to banned words list." {
		t.Fatalf("unexpected add reply %q", got)
	}
	words, _ := h.store.ListBannedWords(ctx)
	if len(words) != 1 || words[0].Word != "spam" {
		t.Fatalf("expected stored lowercase word, got %+v", words)
	}

	if got := h.run(t, adminChat, "/removeban spam"); got != "✅ Removed \"spam\" from banned words list." {
		t.Fatalf("unexpected remove reply %q", got)
	}
	if got := h.run(t, adminChat, "/removeban spam"); !strings.Contains(got, "is not in the banned words list") {
		t.Fatalf("expected not-found reply, got %q", got)
	}
}

func TestAutoResponseCommands(t *testing.T) {
	h := newConsoleHarness(t)
	ctx := context.Background()

	if got := h.run(t, adminChat, "/addresponse Refund Policy | Refunds take 5 days | really"); got != "✅ Added auto response for trigger \"refund policy\"." {
		t.Fatalf("unexpected add reply %q", got)
	}
	responses, _ := h.store.ListAutoResponses(ctx)
	if len(responses) != 1 || responses[0].Response != "Refunds take 5 days | really" {
		t.Fatalf("expected response split on first pipe, got %+v", responses)
	}

	if got := h.run(t, adminChat, "/removeresponse refund policy"); !strings.Contains(got, "Removed auto response") {
		t.Fatalf("unexpected remove reply %q", got)
	}
}

func TestGroupSettingsCommands(t *testing.T) {
	h := newConsoleHarness(t)
	ctx := context.Background()

	if got := h.run(t, groupID, "/closegroup"); got != msgGroupClosed {
		t.Fatalf("unexpected close reply %q", got)
	}
	h.run(t, adminChat, "/setwarnings 5")
	h.run(t, adminChat, "/setmute 15")

	settings, err := h.store.GetGroupSettings(ctx)
	if err != nil {
		t.Fatalf("GetGroupSettings returned error: %v", err)
	}
	if !settings.IsClosed || settings.MaxWarnings != 5 || settings.MuteDurationMinutes != 15 {
		t.Fatalf("unexpected settings %+v", settings)
	}

	if got := h.run(t, adminChat, "/opengroup"); got != msgGroupOpened {
		t.Fatalf("unexpected open reply %q", got)
	}
	settings, _ = h.store.GetGroupSettings(ctx)
	if settings.IsClosed || settings.MaxWarnings != 5 {
		t.Fatalf("expected open group with limits kept, got %+v", settings)
	}
}

func TestSettingsReadFailureDoesNotOverwrite(t *testing.T) {
	h := newConsoleHarness(t)
	h.store.FailOn("GetGroupSettings", errors.New("timeout"))

	if got := h.run(t, adminChat, "/closegroup"); got != msgSettingsFailed {
		t.Fatalf("expected settings failure reply, got %q", got)
	}
}

func TestMemberCommands(t *testing.T) {
	h := newConsoleHarness(t)

	if got := h.run(t, adminChat, "/ban 77"); got != "✅ User 77 has been banned." {
		t.Fatalf("unexpected ban reply %q", got)
	}
	if h.rec.Members[0].ChatID != groupID {
		t.Fatalf("expected private command to act on configured group, got %+v", h.rec.Members[0])
	}

	otherGroup := int64(-100999)
	h.run(t, otherGroup, "/kick 78")
	last := h.rec.Members[len(h.rec.Members)-1]
	if last.ChatID != otherGroup || last.UserID != 78 {
		t.Fatalf("expected group command to act on its own chat, got %+v", last)
	}

	h.rec.Errors["unban"] = errors.New("no rights")
	if got := h.run(t, adminChat, "/unban 77"); got != "❌ Failed to unban user 77." {
		t.Fatalf("unexpected failure reply %q", got)
	}
}

func TestMemberCommandWithoutGroup(t *testing.T) {
	rec := messengertest.New()
	store := memstore.New()
	workflow, _ := complaint.NewWorkflow(store, nil, rec, domain.Admin(adminID), nil)
	console, err := NewConsole(Options{Store: store, Complaints: workflow, Messenger: rec, Admin: domain.Admin(adminID)})
	if err != nil {
		t.Fatalf("NewConsole returned error: %v", err)
	}

	cmd, _ := command.Parse("/unmute 5")
	if err := console.HandleCommand(context.Background(), adminChat, adminID, cmd); err != nil {
		t.Fatalf("HandleCommand returned error: %v", err)
	}
	if rec.Last().Text != msgNoGroup {
		t.Fatalf("expected missing group reply, got %q", rec.Last().Text)
	}
}

func TestAdminCallbacks(t *testing.T) {
	h := newConsoleHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.AddAutoResponse(ctx, "price", "No price talk")
	_, _ = h.store.UpsertUser(ctx, domain.User{UserID: 42, Username: "ann", FirstName: "Ann"})
	_, _ = h.store.AddComplaint(ctx, domain.Complaint{UserID: 42, Username: "ann", Message: "late order"})

	tests := []struct {
		data string
		want []string
	}{
		{data: messenger.ActionComplaints, want: []string{"Pending Complaints", "#1 from ann (42)", "late order"}},
		{data: messenger.ActionBannedWords, want: []string{"Banned Words Management", "• spam", "/addban <word>"}},
		{data: messenger.ActionAutoResponses, want: []string{"Auto Responses Management", "• price → No price talk"}},
		{data: messenger.ActionGroupSettings, want: []string{"Group Status: 🔓 Open", "Max Warnings: 3", "Mute Duration: 60 minutes"}},
		{data: messenger.ActionStatistics, want: []string{"Total users: 1", "Pending complaints: 1", "Closed complaints: 0", "Banned words: 1", "Auto responses: 1"}},
		{data: messenger.PrefixUserInfo + "42", want: []string{"User Information", "ID: 42", "Username: @ann"}},
		{data: messenger.PrefixUserHistory + "42", want: []string{"Complaint history for user 42", "#1 ⏳ Pending"}},
		{data: messenger.PrefixReplyComplaint + "1", want: []string{"Reply to complaint #1", "/reply 42 Your response here"}},
		{data: messenger.PrefixUserInfo + "404", want: []string{"User 404 not found"}},
	}

	for _, tt := range tests {
		h.rec.Reset()
		err := h.console.HandleCallback(ctx, domain.Callback{ID: "cb", ChatID: adminChat, From: domain.User{UserID: adminID}, Data: tt.data})
		if err != nil {
			t.Fatalf("%s: HandleCallback returned error: %v", tt.data, err)
		}
		text := h.rec.Last().Text
		for _, want := range tt.want {
			if !strings.Contains(text, want) {
				t.Fatalf("%s: expected %q in %q", tt.data, want, text)
			}
		}
		if len(h.rec.Answers) != 1 {
			t.Fatalf("%s: expected callback answered once, got %v", tt.data, h.rec.Answers)
		}
	}
}

func TestCloseComplaintCallbackIsIdempotent(t *testing.T) {
	h := newConsoleHarness(t)
	ctx := context.Background()
	id, _ := h.store.AddComplaint(ctx, domain.Complaint{UserID: 42, Message: "x"})
	cb := domain.Callback{ID: "cb", ChatID: adminChat, From: domain.User{UserID: adminID}, Data: messenger.PrefixCloseComplaint + "1"}

	if err := h.console.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if h.rec.Last().Text != "✅ Complaint #1 has been closed." {
		t.Fatalf("unexpected close reply %q", h.rec.Last().Text)
	}
	if err := h.console.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if h.rec.Last().Text != "ℹ️ Complaint #1 is already closed." {
		t.Fatalf("unexpected second close reply %q", h.rec.Last().Text)
	}

	stored, _ := h.store.GetComplaint(ctx, id)
	if stored.Status != domain.ComplaintClosed {
		t.Fatalf("expected closed status, got %s", stored.Status)
	}
}

func TestAdminCallbackRejectsOthers(t *testing.T) {
	h := newConsoleHarness(t)

	err := h.console.HandleCallback(context.Background(), domain.Callback{ID: "cb", ChatID: 42, From: domain.User{UserID: 42}, Data: messenger.ActionStatistics})
	if err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if len(h.rec.Messages) != 0 {
		t.Fatalf("expected no message to non-admin, got %+v", h.rec.Messages)
	}
	if len(h.rec.Answers) != 1 {
		t.Fatalf("expected refusal answer, got %v", h.rec.Answers)
	}
}

func TestStatisticsShowsUnavailableCounters(t *testing.T) {
	h := newConsoleHarness(t)
	h.store.FailOn("CountUsers", errors.New("down"))

	if text := h.console.Statistics(context.Background()); !strings.Contains(text, "Total users: n/a") {
		t.Fatalf("expected n/a for failed counter, got %q", text)
	}
}

func TestIsAdminCallback(t *testing.T) {
	for _, data := range []string{messenger.ActionStatistics, "reply_complaint_3", "close_complaint_3", "user_info_1", "user_history_1"} {
		if !IsAdminCallback(data) {
			t.Fatalf("expected %q to be an admin callback", data)
		}
	}
	for _, data := range []string{messenger.ActionFAQ, messenger.ActionCheckStatus, "bogus"} {
		if IsAdminCallback(data) {
			t.Fatalf("expected %q not to be an admin callback", data)
		}
	}
}
