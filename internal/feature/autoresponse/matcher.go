// Package autoresponse picks canned replies for group messages.
package autoresponse

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

// Match returns the response of the first trigger, in table order, that has
// any of its words as a substring of the lowercased text. A trigger fires on
// ANY of its words, not on the whole phrase.
func Match(text string, triggers []domain.AutoResponse) (string, bool) {
	lowered := strings.ToLower(text)

	for _, trigger := range triggers {
		for _, word := range strings.Fields(strings.ToLower(trigger.Trigger)) {
			if strings.Contains(lowered, word) {
				return trigger.Response, true
			}
		}
	}

	return "", false
}

type triggerStore interface {
	ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error)
}

type sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
}

// Responder replies to a message with the first matching auto response.
type Responder struct {
	store  triggerStore
	sender sender
	logger *logrus.Entry
}

// NewResponder builds a Responder.
func NewResponder(store triggerStore, sender sender, logger *logrus.Entry) *Responder {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Responder{store: store, sender: sender, logger: logger}
}

// Respond reports whether an auto response was sent. A store failure is
// treated as an empty trigger table.
func (r *Responder) Respond(ctx context.Context, chatID int64, messageID int, text string) (bool, error) {
	if r == nil || r.store == nil || r.sender == nil {
		return false, errors.New("auto responder is not initialized")
	}

	triggers, err := r.store.ListAutoResponses(ctx)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "auto_response_lookup_failed",
			"chat_id": chatID,
		}).WithError(err).Warn("could not load auto responses")
		return false, nil
	}

	response, ok := Match(text, triggers)
	if !ok {
		return false, nil
	}

	if _, err := r.sender.SendText(ctx, chatID, response, messenger.ReplyTo(messageID)); err != nil {
		return false, err
	}

	r.logger.WithFields(logging.Fields{
		"event":   "auto_response_sent",
		"chat_id": chatID,
	}).Debug("sent auto response")

	return true, nil
}
