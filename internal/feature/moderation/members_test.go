package moderation

import (
	"context"
	"errors"
	"testing"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/messenger/messengertest"
	"tg_support_bot/internal/store/memstore"
)

func TestMembersActions(t *testing.T) {
	rec := messengertest.New()
	store := memstore.New()
	members, err := NewMembers(rec, store, nil)
	if err != nil {
		t.Fatalf("NewMembers returned error: %v", err)
	}
	ctx := context.Background()

	if err := members.Kick(ctx, groupChat, 1); err != nil {
		t.Fatalf("Kick returned error: %v", err)
	}
	if err := members.Ban(ctx, groupChat, 2); err != nil {
		t.Fatalf("Ban returned error: %v", err)
	}
	if err := members.Unban(ctx, groupChat, 2); err != nil {
		t.Fatalf("Unban returned error: %v", err)
	}

	_ = store.AddWarning(ctx, domain.Warning{UserID: 3, Reason: domain.ReasonBannedWord})
	if err := members.Unmute(ctx, groupChat, 3); err != nil {
		t.Fatalf("Unmute returned error: %v", err)
	}
	if list, _ := store.ListWarnings(ctx, 3); len(list) != 0 {
		t.Fatalf("expected unmute to reset warnings, got %+v", list)
	}

	want := []string{"kick", "ban", "unban", "lift"}
	if len(rec.Members) != len(want) {
		t.Fatalf("expected %d member actions, got %+v", len(want), rec.Members)
	}
	for i, op := range want {
		if rec.Members[i].Op != op {
			t.Fatalf("action %d: expected %s, got %s", i, op, rec.Members[i].Op)
		}
	}
}

func TestMembersPropagateFailures(t *testing.T) {
	rec := messengertest.New()
	rec.Errors["ban"] = errors.New("not enough rights")
	members, _ := NewMembers(rec, nil, nil)

	if err := members.Ban(context.Background(), groupChat, 2); err == nil {
		t.Fatalf("expected ban failure to propagate")
	}
}

func TestNewMembersRequiresAPI(t *testing.T) {
	if _, err := NewMembers(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil api")
	}
}
