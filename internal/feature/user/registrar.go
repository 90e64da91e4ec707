// Package user keeps the users table current on /start and on the first
// complaint of a sender.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
)

type userStore interface {
	UpsertUser(ctx context.Context, user domain.User) (bool, error)
}

// Registrar upserts the sender profile on every call.
type Registrar struct {
	users  userStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar over the given store.
func NewRegistrar(users userStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureUser creates the user on first sight and refreshes username and names
// afterwards. It reports whether a new record was created.
func (r *Registrar) EnsureUser(ctx context.Context, u domain.User) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if u.UserID == 0 {
		return false, errors.New("user id is required")
	}

	created, err := r.users.UpsertUser(ctx, u)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": u.UserID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": u.UserID,
	}).Debug("refreshed user profile")

	return false, nil
}
