package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/autoresponse"
	"tg_support_bot/internal/messenger/messengertest"
	"tg_support_bot/internal/store/memstore"
)

const groupChat = int64(-100500)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store  *memstore.Store
	rec    *messengertest.Recorder
	engine *Engine
	hook   *logtest.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memstore.New()
	rec := messengertest.New()
	logger, hook := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	engine, err := NewEngine(store, rec, autoresponse.NewResponder(store, rec, entry), entry)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	engine.now = func() time.Time { return fixedNow }

	return &harness{store: store, rec: rec, engine: engine, hook: hook}
}

func (h *harness) post(t *testing.T, userID int64, text string) Outcome {
	t.Helper()

	outcome, err := h.engine.HandleGroupMessage(context.Background(), GroupMessage{
		ChatID:    groupChat,
		MessageID: len(h.rec.Messages) + 100,
		Sender:    domain.User{UserID: userID, Username: "troll"},
		Text:      text,
	})
	if err != nil {
		t.Fatalf("HandleGroupMessage returned error: %v", err)
	}
	return outcome
}

func (h *harness) bannedWarnings(t *testing.T, userID int64) int {
	t.Helper()

	list, err := h.store.ListWarnings(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListWarnings returned error: %v", err)
	}
	n := 0
	for _, w := range list {
		if w.Reason == domain.ReasonBannedWord {
			n++
		}
	}
	return n
}

func TestWarningsBelowLimitDoNotRestrict(t *testing.T) {
	for k := 1; k < domain.DefaultMaxWarnings; k++ {
		h := newHarness(t)
		_ = h.store.AddBannedWord(context.Background(), "spam")

		for i := 0; i < k; i++ {
			if outcome := h.post(t, 7, "this is spam"); outcome != OutcomeWarned {
				t.Fatalf("expected warned, got %s", outcome)
			}
		}

		if got := h.bannedWarnings(t, 7); got != k {
			t.Fatalf("expected %d warnings, got %d", k, got)
		}
		if len(h.rec.Restrictions) != 0 {
			t.Fatalf("expected no restriction after %d warnings", k)
		}
		if !h.rec.Contains(groupChat, fmt.Sprintf("Warning %d/3", k)) {
			t.Fatalf("expected warning notice %d/3, got %+v", k, h.rec.Messages)
		}
	}
}

func TestThirdBannedWordMutesAndResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.UpdateGroupSettings(ctx, domain.GroupSettings{MaxWarnings: 3, MuteDurationMinutes: 60})

	h.post(t, 7, "this is spam")
	h.post(t, 7, "this is spam")
	if outcome := h.post(t, 7, "this is spam"); outcome != OutcomeMuted {
		t.Fatalf("expected muted on third violation, got %s", outcome)
	}

	if len(h.rec.Restrictions) != 1 {
		t.Fatalf("expected exactly one restriction, got %d", len(h.rec.Restrictions))
	}
	restriction := h.rec.Restrictions[0]
	if restriction.UserID != 7 || !restriction.Until.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected restriction %+v", restriction)
	}
	if got := h.bannedWarnings(t, 7); got != 0 {
		t.Fatalf("expected warnings cleared after mute, got %d", got)
	}
	if !h.rec.Contains(groupChat, "muted for 60 minutes") {
		t.Fatalf("expected mute notice, got %+v", h.rec.Messages)
	}

	if outcome := h.post(t, 7, "this is spam"); outcome != OutcomeWarned {
		t.Fatalf("expected counting to restart after mute, got %s", outcome)
	}
	if got := h.bannedWarnings(t, 7); got != 1 {
		t.Fatalf("expected warning count 1 after reset, got %d", got)
	}
	if len(h.rec.Restrictions) != 1 {
		t.Fatalf("expected no second restriction, got %d", len(h.rec.Restrictions))
	}
}

func TestFailedMuteKeepsWarnings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.UpdateGroupSettings(ctx, domain.GroupSettings{MaxWarnings: 1, MuteDurationMinutes: 5})
	h.rec.Errors["restrict"] = errors.New("not enough rights")

	if outcome := h.post(t, 9, "spam"); outcome != OutcomeWarned {
		t.Fatalf("expected warned when restriction fails, got %s", outcome)
	}
	if got := h.bannedWarnings(t, 9); got != 1 {
		t.Fatalf("expected warning to stay recorded, got %d", got)
	}
}

func TestLegacyWarningsCountTowardMute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.UpdateGroupSettings(ctx, domain.GroupSettings{MaxWarnings: 3, MuteDurationMinutes: 60})
	_ = h.store.AddWarning(ctx, domain.Warning{UserID: 7, Reason: "Used banned word"})
	_ = h.store.AddWarning(ctx, domain.Warning{UserID: 7, Reason: "Posted unauthorized link"})
	_ = h.store.AddWarning(ctx, domain.Warning{UserID: 7, Reason: "Used banned word"})

	if outcome := h.post(t, 7, "spam again"); outcome != OutcomeMuted {
		t.Fatalf("expected legacy strikes to escalate, got %s", outcome)
	}
}

func TestStoredMuteDurationIsCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.UpdateGroupSettings(ctx, domain.GroupSettings{MaxWarnings: 1, MuteDurationMinutes: 200000000})

	if outcome := h.post(t, 9, "spam"); outcome != OutcomeMuted {
		t.Fatalf("expected muted, got %s", outcome)
	}
	if len(h.rec.Restrictions) != 1 {
		t.Fatalf("expected one restriction, got %d", len(h.rec.Restrictions))
	}
	want := fixedNow.Add(domain.MaxMuteDurationMinutes * time.Minute)
	if until := h.rec.Restrictions[0].Until; !until.Equal(want) {
		t.Fatalf("expected restriction until %s, got %s", want, until)
	}
}

func TestClosedGroupDeletesWithoutWarning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.UpdateGroupSettings(ctx, domain.GroupSettings{IsClosed: true})

	if outcome := h.post(t, 7, "spam and https://example.com"); outcome != OutcomeClosed {
		t.Fatalf("expected closed outcome, got %s", outcome)
	}
	if len(h.rec.Deleted) != 1 {
		t.Fatalf("expected message to be deleted, got %d deletions", len(h.rec.Deleted))
	}
	if h.rec.Last().Text != NoticeGroupClosed {
		t.Fatalf("expected closed notice, got %q", h.rec.Last().Text)
	}
	if list, _ := h.store.ListWarnings(ctx, 7); len(list) != 0 {
		t.Fatalf("expected no warnings while closed, got %+v", list)
	}
}

func TestLinkRemovedWithSingleWarning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if outcome := h.post(t, 3, "join www.example.com now"); outcome != OutcomeLinkRemoved {
			t.Fatalf("expected link removal, got %s", outcome)
		}
	}

	if len(h.rec.Restrictions) != 0 {
		t.Fatalf("expected links never to escalate to a mute")
	}
	list, _ := h.store.ListWarnings(ctx, 3)
	if len(list) != 4 || list[0].Reason != domain.ReasonLink {
		t.Fatalf("expected four link warnings, got %+v", list)
	}
	if !h.rec.Contains(groupChat, "unauthorized links are not allowed") {
		t.Fatalf("expected link notice, got %+v", h.rec.Messages)
	}
}

func TestLinkWarningsDoNotCountTowardMute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")

	h.post(t, 3, "t.me/somewhere")
	h.post(t, 3, "t.me/somewhere")
	if outcome := h.post(t, 3, "spam"); outcome != OutcomeWarned {
		t.Fatalf("expected first banned word to warn, got %s", outcome)
	}
	if !h.rec.Contains(groupChat, "Warning 1/3") {
		t.Fatalf("expected banned word count to ignore link warnings, got %+v", h.rec.Messages)
	}
}

func TestAutoResponseThenLinkCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddAutoResponse(ctx, "price", "No price talk")

	if outcome := h.post(t, 4, "price?"); outcome != OutcomeAutoReplied {
		t.Fatalf("expected auto reply, got %s", outcome)
	}
	if h.rec.Last().Text != "No price talk" {
		t.Fatalf("expected auto response, got %q", h.rec.Last().Text)
	}

	if outcome := h.post(t, 4, "price at https://scam.example"); outcome != OutcomeLinkRemoved {
		t.Fatalf("expected link check to run after auto reply, got %s", outcome)
	}
	if !h.rec.Contains(groupChat, "No price talk") || len(h.rec.Deleted) != 1 {
		t.Fatalf("expected reply and deletion, got messages=%+v deleted=%v", h.rec.Messages, h.rec.Deleted)
	}
}

func TestBannedWordSkipsAutoResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	_ = h.store.AddAutoResponse(ctx, "spam", "should not be sent")

	h.post(t, 4, "SPAM")
	if h.rec.Contains(groupChat, "should not be sent") {
		t.Fatalf("expected banned word gate to stop processing")
	}
}

func TestCleanMessage(t *testing.T) {
	h := newHarness(t)

	if outcome := h.post(t, 4, "good morning"); outcome != OutcomeClean {
		t.Fatalf("expected clean outcome, got %s", outcome)
	}
	if len(h.rec.Messages) != 0 || len(h.rec.Deleted) != 0 {
		t.Fatalf("expected no side effects, got %+v", h.rec.Messages)
	}
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.FailOn("GetGroupSettings", errors.New("timeout"))

	settings := h.engine.Settings(context.Background())
	if settings != domain.DefaultGroupSettings() {
		t.Fatalf("expected defaults, got %+v", settings)
	}

	entry := h.hook.LastEntry()
	if entry == nil || entry.Data["event"] != "group_settings_unavailable" {
		t.Fatalf("expected settings failure to be logged, got %+v", entry)
	}
}

func TestStoreFailuresDoNotBreakModeration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.store.AddBannedWord(ctx, "spam")
	h.store.FailOn("ListWarnings", errors.New("down"))
	h.store.FailOn("AddWarning", errors.New("down"))

	if outcome := h.post(t, 5, "spam"); outcome != OutcomeWarned {
		t.Fatalf("expected warn with zero prior count, got %s", outcome)
	}
	if !h.rec.Contains(groupChat, "Warning 1/3") {
		t.Fatalf("expected first warning notice, got %+v", h.rec.Messages)
	}
}

func TestContainsLink(t *testing.T) {
	cases := map[string]bool{
		"see http://a.b":      true,
		"HTTPS://X.Y/z":       true,
		"www.example.org":     true,
		"t.me/channel":        true,
		"no links here":       false,
		"https:// broken":     false,
		"email me at a@b.com": false,
	}

	for text, want := range cases {
		if got := ContainsLink(text); got != want {
			t.Fatalf("ContainsLink(%q) = %v, want %v", text, got, want)
		}
	}
}
