package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
)

type bootstrapStore interface {
	GetUser(ctx context.Context, userID int64) (domain.User, error)
	UpsertUser(ctx context.Context, user domain.User) (bool, error)
	GetGroupSettings(ctx context.Context) (domain.GroupSettings, error)
	UpdateGroupSettings(ctx context.Context, settings domain.GroupSettings) error
}

// Bootstrapper prepares the store for a fresh deployment.
type Bootstrapper struct {
	store  bootstrapStore
	logger *logrus.Entry
}

// NewBootstrapper constructs a Bootstrapper for the provided store.
func NewBootstrapper(store bootstrapStore, logger *logrus.Entry) *Bootstrapper {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Bootstrapper{
		store:  store,
		logger: logger,
	}
}

// Bootstrap writes default group settings when none exist and makes sure the
// configured admin has a user record. Existing rows are left untouched.
func (b *Bootstrapper) Bootstrap(ctx context.Context, adminID int64) error {
	if b == nil || b.store == nil {
		return errors.New("admin bootstrapper is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if adminID == 0 {
		return errors.New("admin id is required")
	}

	settingsCreated := false
	if _, err := b.store.GetGroupSettings(ctx); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("read group settings: %w", err)
		}
		if err := b.store.UpdateGroupSettings(ctx, domain.DefaultGroupSettings()); err != nil {
			return fmt.Errorf("write default group settings: %w", err)
		}
		settingsCreated = true
	}

	adminCreated := false
	if _, err := b.store.GetUser(ctx, adminID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("read admin user: %w", err)
		}
		created, err := b.store.UpsertUser(ctx, domain.User{UserID: adminID, FirstName: "Admin"})
		if err != nil {
			return fmt.Errorf("ensure admin user: %w", err)
		}
		adminCreated = created
	}

	b.logger.WithFields(logging.Fields{
		"event":            "admin_bootstrap",
		"admin_id":         adminID,
		"settings_created": settingsCreated,
		"admin_created":    adminCreated,
	}).Info("ensured admin and group settings")

	return nil
}
