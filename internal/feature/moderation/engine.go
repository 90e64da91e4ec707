// Package moderation enforces the group policy: the closed-group gate,
// banned words with warning escalation, auto responses and the link rule.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

// Outcome names the gate that decided a group message.
type Outcome string

const (
	OutcomeClosed      Outcome = "closed"
	OutcomeWarned      Outcome = "warned"
	OutcomeMuted       Outcome = "muted"
	OutcomeAutoReplied Outcome = "auto_replied"
	OutcomeLinkRemoved Outcome = "link_removed"
	OutcomeClean       Outcome = "clean"
)

// Fixed notices posted to the group.
const (
	NoticeGroupClosed = "🔒 Group is currently closed. Messages are not allowed."
)

var linkPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|t\.me/\S+)`)

// ContainsLink reports whether text carries an http(s)://, www. or t.me/ link.
func ContainsLink(text string) bool {
	return linkPattern.MatchString(text)
}

// GroupMessage is a non-admin text message posted in the moderated group.
type GroupMessage struct {
	ChatID    int64
	MessageID int
	Sender    domain.User
	Text      string
}

type policyStore interface {
	GetGroupSettings(ctx context.Context) (domain.GroupSettings, error)
	ListBannedWords(ctx context.Context) ([]domain.BannedWord, error)
	AddWarning(ctx context.Context, warning domain.Warning) error
	ListWarnings(ctx context.Context, userID int64) ([]domain.Warning, error)
	ClearWarnings(ctx context.Context, userID int64) error
}

type groupActions interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
}

type autoResponder interface {
	Respond(ctx context.Context, chatID int64, messageID int, text string) (bool, error)
}

// Engine runs every group message through the policy gates in order. It keeps
// no per-user state: the warning count is re-read from the store each time,
// so concurrent messages from one user may race on it.
type Engine struct {
	store     policyStore
	actions   groupActions
	responder autoResponder
	logger    *logrus.Entry
	now       func() time.Time
}

// NewEngine builds an Engine. responder may be nil to disable auto responses.
func NewEngine(store policyStore, actions groupActions, responder autoResponder, logger *logrus.Entry) (*Engine, error) {
	if store == nil {
		return nil, errors.New("policy store is required")
	}
	if actions == nil {
		return nil, errors.New("group actions are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Engine{
		store:     store,
		actions:   actions,
		responder: responder,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Settings returns the stored group settings, falling back to defaults when
// they are missing or unreadable.
func (e *Engine) Settings(ctx context.Context) domain.GroupSettings {
	settings, err := e.store.GetGroupSettings(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.WithField("event", "group_settings_unavailable").WithError(err).Warn("using default group settings")
		}
		return domain.DefaultGroupSettings()
	}

	return settings.Normalize()
}

// HandleGroupMessage applies the gates: closed group, banned word, auto
// response, link. The first two stop processing; the link check runs after
// the auto response whether or not one was sent.
func (e *Engine) HandleGroupMessage(ctx context.Context, msg GroupMessage) (Outcome, error) {
	if e == nil {
		return "", errors.New("moderation engine is not initialized")
	}

	outcome, err := e.evaluate(ctx, msg)
	if outcome != "" {
		outcomeCount.WithLabelValues(string(outcome)).Inc()
	}
	return outcome, err
}

func (e *Engine) evaluate(ctx context.Context, msg GroupMessage) (Outcome, error) {
	settings := e.Settings(ctx)
	log := e.logger.WithFields(logging.Fields{
		"chat_id": msg.ChatID,
		"user_id": msg.Sender.UserID,
	})

	if settings.IsClosed {
		e.deleteMessage(ctx, log, msg)
		if _, err := e.actions.SendText(ctx, msg.ChatID, NoticeGroupClosed); err != nil {
			return OutcomeClosed, err
		}
		log.WithField("event", "moderation_closed").Debug("removed message while group is closed")
		return OutcomeClosed, nil
	}

	if word, ok := e.findBannedWord(ctx, log, msg.Text); ok {
		return e.punishBannedWord(ctx, log, msg, settings, word)
	}

	outcome := OutcomeClean
	if e.responder != nil {
		replied, err := e.responder.Respond(ctx, msg.ChatID, msg.MessageID, msg.Text)
		if err != nil {
			log.WithField("event", "auto_response_failed").WithError(err).Warn("auto response not delivered")
		}
		if replied {
			outcome = OutcomeAutoReplied
		}
	}

	if ContainsLink(msg.Text) {
		return e.removeLink(ctx, log, msg)
	}

	return outcome, nil
}

func (e *Engine) findBannedWord(ctx context.Context, log *logrus.Entry, text string) (string, bool) {
	words, err := e.store.ListBannedWords(ctx)
	if err != nil {
		log.WithField("event", "banned_words_unavailable").WithError(err).Warn("skipping banned word check")
		return "", false
	}

	lowered := strings.ToLower(text)
	for _, w := range words {
		if w.Word != "" && strings.Contains(lowered, w.Word) {
			return w.Word, true
		}
	}
	return "", false
}

// punishBannedWord moves the sender from clean/warned(n) to warned(n+1), or
// to muted once n+1 reaches the limit. Only banned-word warnings count.
func (e *Engine) punishBannedWord(ctx context.Context, log *logrus.Entry, msg GroupMessage, settings domain.GroupSettings, word string) (Outcome, error) {
	e.deleteMessage(ctx, log, msg)

	previous := e.countBannedWordWarnings(ctx, log, msg.Sender.UserID)
	if err := e.store.AddWarning(ctx, domain.Warning{
		UserID:    msg.Sender.UserID,
		Reason:    domain.ReasonBannedWord,
		CreatedAt: e.now().UTC(),
	}); err != nil {
		log.WithField("event", "warning_write_failed").WithError(err).Warn("could not record warning")
	}
	count := previous + 1

	log = log.WithFields(logging.Fields{
		"word":         word,
		"warnings":     count,
		"max_warnings": settings.MaxWarnings,
	})

	if count < settings.MaxWarnings {
		log.WithField("event", "moderation_warned").Info("warned user for banned word")
		text := fmt.Sprintf("⚠️ %s, please avoid using banned words. Warning %d/%d", msg.Sender.Mention(), count, settings.MaxWarnings)
		if _, err := e.actions.SendText(ctx, msg.ChatID, text); err != nil {
			return OutcomeWarned, err
		}
		return OutcomeWarned, nil
	}

	until := e.now().Add(settings.MuteDuration())
	if err := e.actions.RestrictMember(ctx, msg.ChatID, msg.Sender.UserID, until); err != nil {
		memberActionCount.WithLabelValues("mute", "error").Inc()
		log.WithField("event", "moderation_mute_failed").WithError(err).Error("could not mute user")
		text := fmt.Sprintf("⚠️ %s, please avoid using banned words. Warning %d/%d", msg.Sender.Mention(), count, settings.MaxWarnings)
		if _, sendErr := e.actions.SendText(ctx, msg.ChatID, text); sendErr != nil {
			return OutcomeWarned, sendErr
		}
		return OutcomeWarned, nil
	}
	memberActionCount.WithLabelValues("mute", "ok").Inc()

	if err := e.store.ClearWarnings(ctx, msg.Sender.UserID); err != nil {
		log.WithField("event", "warning_clear_failed").WithError(err).Warn("could not reset warnings after mute")
	}

	log.WithFields(logging.Fields{
		"event": "moderation_muted",
		"until": until.UTC().Format(time.RFC3339),
	}).Info("muted user after repeated violations")

	text := fmt.Sprintf("🔇 %s has been muted for %d minutes due to repeated violations.", msg.Sender.Mention(), settings.MuteDurationMinutes)
	if _, err := e.actions.SendText(ctx, msg.ChatID, text); err != nil {
		return OutcomeMuted, err
	}
	return OutcomeMuted, nil
}

func (e *Engine) countBannedWordWarnings(ctx context.Context, log *logrus.Entry, userID int64) int {
	warnings, err := e.store.ListWarnings(ctx, userID)
	if err != nil {
		log.WithField("event", "warnings_unavailable").WithError(err).Warn("counting warnings from zero")
		return 0
	}

	n := 0
	for _, w := range warnings {
		if w.Reason.Canonical() == domain.ReasonBannedWord {
			n++
		}
	}
	return n
}

// removeLink deletes the message and records a single link warning that does
// not escalate.
func (e *Engine) removeLink(ctx context.Context, log *logrus.Entry, msg GroupMessage) (Outcome, error) {
	e.deleteMessage(ctx, log, msg)

	if err := e.store.AddWarning(ctx, domain.Warning{
		UserID:    msg.Sender.UserID,
		Reason:    domain.ReasonLink,
		CreatedAt: e.now().UTC(),
	}); err != nil {
		log.WithField("event", "warning_write_failed").WithError(err).Warn("could not record link warning")
	}

	log.WithField("event", "moderation_link_removed").Info("removed message with link")

	text := fmt.Sprintf("🔗 %s, unauthorized links are not allowed. Message deleted.", msg.Sender.Mention())
	if _, err := e.actions.SendText(ctx, msg.ChatID, text); err != nil {
		return OutcomeLinkRemoved, err
	}
	return OutcomeLinkRemoved, nil
}

func (e *Engine) deleteMessage(ctx context.Context, log *logrus.Entry, msg GroupMessage) {
	if err := e.actions.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		log.WithFields(logging.Fields{
			"event":      "moderation_delete_failed",
			"message_id": msg.MessageID,
		}).WithError(err).Warn("could not delete message")
	}
}
