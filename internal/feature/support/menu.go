// Package support serves the user-facing menu: the welcome screen and the
// main menu buttons.
package support

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

const (
	welcomeText = "👋 Welcome to our Customer Support Bot!\n\n" +
		"🎯 How can we help you today?\n\n" +
		"Please choose an option below or write your complaint/question and we'll get back to you soon!"

	newComplaintText = "📝 Please write your complaint or question below:\n\n" +
		"💡 Be as detailed as possible so we can help you better!"

	faqText = "❓ Frequently Asked Questions\n\n" +
		"Q: How long does it take to get a response?\n" +
		"A: Usually within 2-24 hours.\n\n" +
		"Q: Can I track my complaint?\n" +
		"A: Yes, use the \"Check Status\" button.\n\n" +
		"Q: Is this service free?\n" +
		"A: Yes, our support is completely free!"

	noComplaintsText = "📋 You have no complaints yet.\n\nWrite a message to open one!"

	historyLimit = 5
)

// Contact is shown on the contact info screen.
type Contact struct {
	Admin   string
	Email   string
	Website string
}

type userEnsurer interface {
	EnsureUser(ctx context.Context, user domain.User) (bool, error)
}

type historyReader interface {
	History(ctx context.Context, userID int64, limit int) []domain.Complaint
}

type menuMessenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Menu handles /start and the main menu callbacks.
type Menu struct {
	users      userEnsurer
	complaints historyReader
	messenger  menuMessenger
	contact    Contact
	logger     *logrus.Entry
}

// NewMenu wires the user menu.
func NewMenu(users userEnsurer, complaints historyReader, m menuMessenger, contact Contact, logger *logrus.Entry) (*Menu, error) {
	if users == nil || complaints == nil {
		return nil, errors.New("user registrar and complaint history are required")
	}
	if m == nil {
		return nil, errors.New("messenger is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Menu{
		users:      users,
		complaints: complaints,
		messenger:  m,
		contact:    contact,
		logger:     logger,
	}, nil
}

// Welcome registers the user and shows the main menu.
func (m *Menu) Welcome(ctx context.Context, chatID int64, from domain.User) error {
	if _, err := m.users.EnsureUser(ctx, from); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "welcome_user_upsert_failed",
			"user_id": from.UserID,
		}).WithError(err).Warn("could not upsert user on start")
	}

	return m.send(ctx, chatID, welcomeText, messenger.WithKeyboard(messenger.MainMenu()))
}

// HandleCallback serves the main menu buttons. The callback is always
// answered so the client stops its spinner.
func (m *Menu) HandleCallback(ctx context.Context, cb domain.Callback) error {
	defer m.answer(ctx, cb)

	switch cb.Data {
	case messenger.ActionNewComplaint:
		return m.send(ctx, cb.ChatID, newComplaintText)
	case messenger.ActionCheckStatus:
		return m.send(ctx, cb.ChatID, m.statusText(ctx, cb.From.UserID))
	case messenger.ActionContactInfo:
		return m.send(ctx, cb.ChatID, m.contactText())
	case messenger.ActionFAQ:
		return m.send(ctx, cb.ChatID, faqText)
	case messenger.ActionMainMenu:
		return m.send(ctx, cb.ChatID, welcomeText, messenger.WithKeyboard(messenger.MainMenu()))
	default:
		m.logger.WithFields(logging.Fields{
			"event":   "callback_unknown",
			"user_id": cb.From.UserID,
			"data":    cb.Data,
		}).Debug("ignoring unknown menu callback")
		return nil
	}
}

func (m *Menu) statusText(ctx context.Context, userID int64) string {
	complaints := m.complaints.History(ctx, userID, historyLimit)
	if len(complaints) == 0 {
		return noComplaintsText
	}

	var b strings.Builder
	b.WriteString("📋 Your Recent Complaints\n")
	for _, c := range complaints {
		fmt.Fprintf(&b, "\n#%d %s\n📝 %s\n", c.ID, c.Status.Label(), c.Excerpt(60))
	}
	return b.String()
}

func (m *Menu) contactText() string {
	return fmt.Sprintf("📞 Contact Information\n\n"+
		"🤖 Bot Support: Available 24/7\n"+
		"👨‍💼 Admin: %s\n"+
		"📧 Email: %s\n"+
		"🌐 Website: %s", m.contact.Admin, m.contact.Email, m.contact.Website)
}

func (m *Menu) send(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) error {
	if _, err := m.messenger.SendText(ctx, chatID, text, opts...); err != nil {
		return fmt.Errorf("send menu reply: %w", err)
	}
	return nil
}

func (m *Menu) answer(ctx context.Context, cb domain.Callback) {
	if cb.ID == "" {
		return
	}
	if err := m.messenger.AnswerCallback(ctx, cb.ID, ""); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "callback_answer_failed",
			"user_id": cb.From.UserID,
		}).WithError(err).Warn("could not answer callback")
	}
}
