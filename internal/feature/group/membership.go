// Package group handles membership events of the moderated group: join
// requests and members who left.
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

type membershipMessenger interface {
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
}

type userEnsurer interface {
	EnsureUser(ctx context.Context, user domain.User) (bool, error)
}

// Membership approves join requests and invites leavers back.
type Membership struct {
	messenger  membershipMessenger
	users      userEnsurer
	botName    string
	inviteLink string
	logger     *logrus.Entry
}

// NewMembership builds a Membership. users may be nil. An empty inviteLink
// disables the rejoin notice.
func NewMembership(m membershipMessenger, users userEnsurer, botName, inviteLink string, logger *logrus.Entry) (*Membership, error) {
	if m == nil {
		return nil, errors.New("messenger is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Membership{
		messenger:  m,
		users:      users,
		botName:    strings.TrimPrefix(strings.TrimSpace(botName), "@"),
		inviteLink: strings.TrimSpace(inviteLink),
		logger:     logger,
	}, nil
}

// HandleJoinRequest approves the request and sends the new member a welcome
// in private. A failed approval is returned; a failed welcome is only
// logged because many users never opened a chat with the bot.
func (m *Membership) HandleJoinRequest(ctx context.Context, chatID int64, from domain.User) error {
	log := m.logger.WithFields(logging.Fields{
		"chat_id": chatID,
		"user_id": from.UserID,
	})

	if err := m.messenger.ApproveJoinRequest(ctx, chatID, from.UserID); err != nil {
		return fmt.Errorf("approve join request: %w", err)
	}
	log.WithField("event", "join_request_approved").Info("join request approved")

	if m.users != nil {
		if _, err := m.users.EnsureUser(ctx, from); err != nil {
			log.WithField("event", "join_user_upsert_failed").WithError(err).Warn("could not record joining user")
		}
	}

	welcome := "🎉 Welcome to our group! Your join request has been approved.\n\n" +
		"Please read our rules and feel free to ask questions."
	if m.botName != "" {
		welcome += "\n\nIf you need support, you can message our bot @" + m.botName
	}
	if _, err := m.messenger.SendText(ctx, from.UserID, welcome); err != nil {
		log.WithField("event", "join_welcome_failed").WithError(err).Debug("could not send welcome")
	}

	return nil
}

// HandleMemberLeft sends a rejoin link to a member who left on their own.
// Removals by an admin are ignored.
func (m *Membership) HandleMemberLeft(ctx context.Context, chatID int64, actorID int64, left domain.User) error {
	if actorID != left.UserID || m.inviteLink == "" {
		return nil
	}

	notice := fmt.Sprintf("👋 We noticed you left our group.\n\n"+
		"If you'd like to rejoin, please click here: %s\n\n"+
		"Note: Leaving and rejoining frequently may result in account restrictions by Telegram.", m.inviteLink)

	if _, err := m.messenger.SendText(ctx, left.UserID, notice); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "rejoin_notice_failed",
			"chat_id": chatID,
			"user_id": left.UserID,
		}).WithError(err).Debug("could not send rejoin notice")
		return nil
	}

	m.logger.WithFields(logging.Fields{
		"event":   "rejoin_notice_sent",
		"chat_id": chatID,
		"user_id": left.UserID,
	}).Info("sent rejoin notice")

	return nil
}
