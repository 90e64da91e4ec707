package support

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/feature/user"
	"tg_support_bot/internal/messenger"
	"tg_support_bot/internal/messenger/messengertest"
	"tg_support_bot/internal/store/memstore"
)

func newTestMenu(t *testing.T) (*Menu, *memstore.Store, *messengertest.Recorder) {
	t.Helper()

	store := memstore.New()
	rec := messengertest.New()
	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	registrar := user.NewRegistrar(store, entry)
	workflow, err := complaint.NewWorkflow(store, registrar, rec, domain.Admin(1), entry)
	if err != nil {
		t.Fatalf("NewWorkflow returned error: %v", err)
	}

	menu, err := NewMenu(registrar, workflow, rec, Contact{Admin: "@boss", Email: "help@shop.test", Website: "https://shop.test"}, entry)
	if err != nil {
		t.Fatalf("NewMenu returned error: %v", err)
	}
	return menu, store, rec
}

func TestWelcomeRegistersUserAndShowsMenu(t *testing.T) {
	menu, store, rec := newTestMenu(t)

	if err := menu.Welcome(context.Background(), 42, domain.User{UserID: 42, FirstName: "Ann"}); err != nil {
		t.Fatalf("Welcome returned error: %v", err)
	}

	if _, err := store.GetUser(context.Background(), 42); err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	last := rec.Last()
	if last.ChatID != 42 || !strings.HasPrefix(last.Text, "👋 Welcome to our Customer Support Bot!") {
		t.Fatalf("unexpected welcome %+v", last)
	}
	if len(last.Keyboard) == 0 || last.Keyboard[0][0].Data != messenger.ActionNewComplaint {
		t.Fatalf("expected main menu keyboard, got %+v", last.Keyboard)
	}
}

func TestWelcomeSurvivesStoreFailure(t *testing.T) {
	menu, store, rec := newTestMenu(t)
	store.FailOn("UpsertUser", errors.New("down"))

	if err := menu.Welcome(context.Background(), 42, domain.User{UserID: 42}); err != nil {
		t.Fatalf("Welcome returned error: %v", err)
	}
	if len(rec.Messages) != 1 {
		t.Fatalf("expected welcome to be sent anyway")
	}
}

func TestMenuCallbacks(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{data: messenger.ActionNewComplaint, want: "Please write your complaint"},
		{data: messenger.ActionContactInfo, want: "👨‍💼 Admin: @boss\n📧 Email: help@shop.test\n🌐 Website: https://shop.test"},
		{data: messenger.ActionFAQ, want: "Usually within 2-24 hours."},
		{data: messenger.ActionMainMenu, want: "How can we help you today?"},
		{data: messenger.ActionCheckStatus, want: "You have no complaints yet."},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			menu, _, rec := newTestMenu(t)

			err := menu.HandleCallback(context.Background(), domain.Callback{
				ID:     "cb-1",
				ChatID: 42,
				From:   domain.User{UserID: 42},
				Data:   tt.data,
			})
			if err != nil {
				t.Fatalf("HandleCallback returned error: %v", err)
			}
			if !rec.Contains(42, tt.want) {
				t.Fatalf("expected %q, got %+v", tt.want, rec.Messages)
			}
			if len(rec.Answers) != 1 || rec.Answers[0] != "cb-1" {
				t.Fatalf("expected callback to be answered, got %v", rec.Answers)
			}
		})
	}
}

func TestCheckStatusListsOwnComplaints(t *testing.T) {
	menu, store, rec := newTestMenu(t)
	ctx := context.Background()
	id, _ := store.AddComplaint(ctx, domain.Complaint{UserID: 42, Message: "refund please"})
	_, _ = store.AddComplaint(ctx, domain.Complaint{UserID: 7, Message: "someone else"})
	_ = store.UpdateComplaintStatus(ctx, id, domain.ComplaintClosed)

	if err := menu.HandleCallback(ctx, domain.Callback{ID: "x", ChatID: 42, From: domain.User{UserID: 42}, Data: messenger.ActionCheckStatus}); err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}

	text := rec.Last().Text
	if !strings.Contains(text, "#1 ✅ Closed") || !strings.Contains(text, "refund please") {
		t.Fatalf("expected own complaint listed, got %q", text)
	}
	if strings.Contains(text, "someone else") {
		t.Fatalf("expected other users' complaints hidden, got %q", text)
	}
}

func TestUnknownCallbackIsStillAnswered(t *testing.T) {
	menu, _, rec := newTestMenu(t)

	if err := menu.HandleCallback(context.Background(), domain.Callback{ID: "cb-9", ChatID: 42, Data: "bogus"}); err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if len(rec.Messages) != 0 || len(rec.Answers) != 1 {
		t.Fatalf("expected only an answer, got messages=%+v answers=%v", rec.Messages, rec.Answers)
	}
}

func TestCallbackSendFailureIsReturned(t *testing.T) {
	menu, _, rec := newTestMenu(t)
	rec.Errors["send"] = errors.New("blocked")

	if err := menu.HandleCallback(context.Background(), domain.Callback{ID: "cb", ChatID: 42, Data: messenger.ActionFAQ}); err == nil {
		t.Fatalf("expected send failure to be returned")
	}
	if len(rec.Answers) != 1 {
		t.Fatalf("expected callback to be answered even on failure")
	}
}
