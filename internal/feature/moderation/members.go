package moderation

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/logging"
)

type memberAPI interface {
	KickMember(ctx context.Context, chatID, userID int64) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	LiftRestrictions(ctx context.Context, chatID, userID int64) error
}

type warningClearer interface {
	ClearWarnings(ctx context.Context, userID int64) error
}

// Members issues the manual member actions available to the admin.
type Members struct {
	api      memberAPI
	warnings warningClearer
	logger   *logrus.Entry
}

// NewMembers builds Members. warnings may be nil.
func NewMembers(api memberAPI, warnings warningClearer, logger *logrus.Entry) (*Members, error) {
	if api == nil {
		return nil, errors.New("member api is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Members{api: api, warnings: warnings, logger: logger}, nil
}

// Kick removes the user but lets them rejoin.
func (m *Members) Kick(ctx context.Context, chatID, userID int64) error {
	return m.record("kick", chatID, userID, m.api.KickMember(ctx, chatID, userID))
}

// Ban removes the user permanently.
func (m *Members) Ban(ctx context.Context, chatID, userID int64) error {
	return m.record("ban", chatID, userID, m.api.BanMember(ctx, chatID, userID))
}

// Unban lifts a ban.
func (m *Members) Unban(ctx context.Context, chatID, userID int64) error {
	return m.record("unban", chatID, userID, m.api.UnbanMember(ctx, chatID, userID))
}

// Unmute restores send permissions and resets the user's warnings.
func (m *Members) Unmute(ctx context.Context, chatID, userID int64) error {
	if err := m.record("unmute", chatID, userID, m.api.LiftRestrictions(ctx, chatID, userID)); err != nil {
		return err
	}

	if m.warnings != nil {
		if err := m.warnings.ClearWarnings(ctx, userID); err != nil {
			m.logger.WithFields(logging.Fields{
				"event":   "warning_clear_failed",
				"user_id": userID,
			}).WithError(err).Warn("could not reset warnings after unmute")
		}
	}
	return nil
}

func (m *Members) record(action string, chatID, userID int64, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	memberActionCount.WithLabelValues(action, result).Inc()

	entry := m.logger.WithFields(logging.Fields{
		"event":   "moderation_" + action,
		"chat_id": chatID,
		"user_id": userID,
	})
	if err != nil {
		entry.WithError(err).Warn("member action failed")
		return err
	}
	entry.Info("member action applied")
	return nil
}
