package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/store/memstore"
)

func TestBootstrapCreatesDefaultsAndAdmin(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	store := memstore.New()
	ctx := context.Background()

	if err := NewBootstrapper(store, logrus.NewEntry(hookLogger)).Bootstrap(ctx, 999); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	settings, err := store.GetGroupSettings(ctx)
	if err != nil {
		t.Fatalf("expected settings to be written: %v", err)
	}
	if settings.IsClosed || settings.MaxWarnings != domain.DefaultMaxWarnings || settings.MuteDurationMinutes != domain.DefaultMuteDurationMinutes {
		t.Fatalf("unexpected default settings %+v", settings)
	}
	if _, err := store.GetUser(ctx, 999); err != nil {
		t.Fatalf("expected admin user to be written: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["event"] != "admin_bootstrap" {
		t.Fatalf("expected admin_bootstrap log entry, got %+v", entry)
	}
	if entry.Data["settings_created"] != true || entry.Data["admin_created"] != true {
		t.Fatalf("expected both rows created, got %v", entry.Data)
	}
}

func TestBootstrapKeepsExistingRows(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	store := memstore.New()
	ctx := context.Background()
	_ = store.UpdateGroupSettings(ctx, domain.GroupSettings{IsClosed: true, MaxWarnings: 5, MuteDurationMinutes: 10})
	_, _ = store.UpsertUser(ctx, domain.User{UserID: 999, Username: "boss", FirstName: "Real"})

	if err := NewBootstrapper(store, logrus.NewEntry(hookLogger)).Bootstrap(ctx, 999); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	settings, _ := store.GetGroupSettings(ctx)
	if !settings.IsClosed || settings.MaxWarnings != 5 {
		t.Fatalf("expected stored settings to survive, got %+v", settings)
	}
	admin, _ := store.GetUser(ctx, 999)
	if admin.FirstName != "Real" || admin.Username != "boss" {
		t.Fatalf("expected admin profile untouched, got %+v", admin)
	}
	if entry := hook.LastEntry(); entry.Data["settings_created"] != false || entry.Data["admin_created"] != false {
		t.Fatalf("expected nothing created, got %v", entry.Data)
	}
}

func TestBootstrapValidatesAndPropagatesErrors(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(hookLogger)

	failing := func(op string) *memstore.Store {
		s := memstore.New()
		s.FailOn(op, errors.New(op+" fail"))
		return s
	}

	tests := []struct {
		name      string
		boot      *Bootstrapper
		ctx       context.Context
		adminID   int64
		expectErr string
	}{
		{
			name:      "nil bootstrapper",
			boot:      nil,
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "not initialized",
		},
		{
			name:      "nil store",
			boot:      NewBootstrapper(nil, entry),
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "not initialized",
		},
		{
			name:      "nil context",
			boot:      NewBootstrapper(memstore.New(), entry),
			ctx:       nil,
			adminID:   1,
			expectErr: "context is required",
		},
		{
			name:      "zero admin id",
			boot:      NewBootstrapper(memstore.New(), entry),
			ctx:       context.Background(),
			adminID:   0,
			expectErr: "admin id is required",
		},
		{
			name:      "settings read error",
			boot:      NewBootstrapper(failing("GetGroupSettings"), entry),
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "GetGroupSettings fail",
		},
		{
			name:      "settings write error",
			boot:      NewBootstrapper(failing("UpdateGroupSettings"), entry),
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "UpdateGroupSettings fail",
		},
		{
			name:      "upsert error",
			boot:      NewBootstrapper(failing("UpsertUser"), entry),
			ctx:       context.Background(),
			adminID:   1,
			expectErr: "UpsertUser fail",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.boot.Bootstrap(tt.ctx, tt.adminID)
			if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
				t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
			}
		})
	}
}
