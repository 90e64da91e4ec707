// Package complaint turns private messages into complaints and carries admin
// replies back to the users who sent them.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

// ErrNotAdmin is returned when a non-admin tries an admin-only operation.
var ErrNotAdmin = errors.New("caller is not the admin")

type complaintStore interface {
	AddComplaint(ctx context.Context, complaint domain.Complaint) (int64, error)
	GetComplaint(ctx context.Context, id int64) (domain.Complaint, error)
	UpdateComplaintStatus(ctx context.Context, id int64, status domain.ComplaintStatus) error
	ListComplaints(ctx context.Context, filter domain.ComplaintFilter) ([]domain.Complaint, error)
}

type userEnsurer interface {
	EnsureUser(ctx context.Context, user domain.User) (bool, error)
}

type sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
}

// Receipt describes a submitted complaint. ID is zero when the store failed
// and Reference holds a placeholder instead.
type Receipt struct {
	ID        int64
	Reference string
	Persisted bool
}

// CloseResult is the outcome of Close.
type CloseResult int

const (
	CloseDone CloseResult = iota
	CloseAlreadyClosed
	CloseNotFound
)

// Workflow implements submit, reply and close.
type Workflow struct {
	store  complaintStore
	users  userEnsurer
	sender sender
	admin  domain.Admin
	logger *logrus.Entry

	placeholder func() string
}

// NewWorkflow builds a Workflow. users may be nil to skip the user upsert.
func NewWorkflow(store complaintStore, users userEnsurer, sender sender, admin domain.Admin, logger *logrus.Entry) (*Workflow, error) {
	if store == nil {
		return nil, errors.New("complaint store is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if admin.ID() == 0 {
		return nil, errors.New("admin id is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Workflow{
		store:  store,
		users:  users,
		sender: sender,
		admin:  admin,
		logger: logger,
		placeholder: func() string {
			return "TMP-" + strings.ToUpper(uuid.NewString()[:8])
		},
	}, nil
}

// Submit stores the complaint, confirms it to the user and notifies the
// admin. A store failure never reaches the user: a placeholder reference is
// issued instead. The returned error is set only when the confirmation could
// not be delivered.
func (w *Workflow) Submit(ctx context.Context, from domain.User, chatID int64, text string) (Receipt, error) {
	log := w.logger.WithFields(logging.Fields{
		"user_id": from.UserID,
		"chat_id": chatID,
	})

	if w.users != nil {
		if _, err := w.users.EnsureUser(ctx, from); err != nil {
			log.WithField("event", "complaint_user_upsert_failed").WithError(err).Warn("could not upsert complaint author")
		}
	}

	username := from.Username
	if username == "" {
		username = domain.NoUsername
	}

	receipt := Receipt{}
	id, err := w.store.AddComplaint(ctx, domain.Complaint{
		UserID:   from.UserID,
		Username: username,
		Message:  text,
		Status:   domain.ComplaintPending,
	})
	if err != nil {
		receipt.Reference = w.placeholder()
		complaintCount.WithLabelValues("placeholder").Inc()
		log.WithFields(logging.Fields{
			"event":     "complaint_store_failed",
			"reference": receipt.Reference,
		}).WithError(err).Error("complaint not persisted, issuing placeholder")
	} else {
		receipt = Receipt{ID: id, Reference: fmt.Sprintf("%d", id), Persisted: true}
		complaintCount.WithLabelValues("stored").Inc()
		log.WithFields(logging.Fields{
			"event":        "complaint_submitted",
			"complaint_id": id,
		}).Info("complaint submitted")
	}

	confirmation := fmt.Sprintf("✅ Thank you for your message!\n\n"+
		"📝 Your complaint: \"%s\"\n\n"+
		"🎫 Complaint ID: #%s\n\n"+
		"👨‍💼 I've forwarded this to our admin. You'll receive a response soon!", text, receipt.Reference)
	_, confirmErr := w.sender.SendText(ctx, chatID, confirmation)

	// The complaint exists either way, so the admin hears about it even when
	// the author cannot be reached.
	w.notifyAdmin(ctx, log, from, text, receipt)

	if confirmErr != nil {
		return receipt, fmt.Errorf("confirm complaint: %w", confirmErr)
	}
	return receipt, nil
}

func (w *Workflow) notifyAdmin(ctx context.Context, log *logrus.Entry, from domain.User, text string, receipt Receipt) {
	handle := "no username"
	if from.Username != "" {
		handle = "@" + from.Username
	}
	name := from.FirstName
	if name == "" {
		name = "Unknown"
	}

	notice := fmt.Sprintf("🔔 New Customer Complaint #%s\n\n"+
		"👤 User: %s (%s)\n"+
		"🆔 User ID: %d\n"+
		"📝 Message: %s\n\n"+
		"To reply: /reply %d Your response here", receipt.Reference, name, handle, from.UserID, text, from.UserID)

	var opts []messenger.SendOption
	if receipt.Persisted {
		opts = append(opts, messenger.WithKeyboard(messenger.ComplaintAdmin(receipt.ID, from.UserID)))
	}

	if _, err := w.sender.SendText(ctx, w.admin.ID(), notice, opts...); err != nil {
		log.WithFields(logging.Fields{
			"event":     "complaint_admin_notify_failed",
			"reference": receipt.Reference,
		}).WithError(err).Warn("admin was not notified")
	}
}

// ReplyToUser delivers an admin answer to targetUserID. A delivery failure
// is reported to the admin and yields false without an error.
func (w *Workflow) ReplyToUser(ctx context.Context, callerID, targetUserID int64, text string) (bool, error) {
	if !w.admin.IsAdmin(callerID) {
		return false, ErrNotAdmin
	}

	log := w.logger.WithFields(logging.Fields{
		"user_id":        callerID,
		"target_user_id": targetUserID,
	})

	reply := fmt.Sprintf("💬 Response from Admin:\n\n%s\n\nIf you have more questions, feel free to ask!", text)
	if _, err := w.sender.SendText(ctx, targetUserID, reply); err != nil {
		log.WithField("event", "complaint_reply_failed").WithError(err).Warn("reply not delivered")
		w.tellAdmin(ctx, log, fmt.Sprintf("❌ Failed to send reply to user %d. They may have blocked the bot.", targetUserID))
		return false, nil
	}

	log.WithField("event", "complaint_replied").Info("reply delivered")
	w.tellAdmin(ctx, log, "✅ Reply sent successfully!")

	return true, nil
}

// Close marks the complaint closed. Closing an already closed complaint
// performs no write.
func (w *Workflow) Close(ctx context.Context, id int64) (CloseResult, error) {
	log := w.logger.WithField("complaint_id", id)

	current, err := w.store.GetComplaint(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CloseNotFound, nil
	case err != nil:
		log.WithField("event", "complaint_lookup_failed").WithError(err).Warn("closing without status check")
	case current.Status == domain.ComplaintClosed:
		return CloseAlreadyClosed, nil
	}

	if err := w.store.UpdateComplaintStatus(ctx, id, domain.ComplaintClosed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CloseNotFound, nil
		}
		return CloseDone, fmt.Errorf("close complaint %d: %w", id, err)
	}

	log.WithField("event", "complaint_closed").Info("complaint closed")
	return CloseDone, nil
}

// PromptReply tells chatID how to answer complaint id, resolving its author
// when the complaint can be read.
func (w *Workflow) PromptReply(ctx context.Context, chatID, id int64) error {
	if _, err := w.sender.SendText(ctx, chatID, w.replyPrompt(ctx, id)); err != nil {
		return fmt.Errorf("send reply prompt: %w", err)
	}
	return nil
}

func (w *Workflow) replyPrompt(ctx context.Context, id int64) string {
	target := "<user_id>"
	if c, err := w.store.GetComplaint(ctx, id); err == nil {
		target = fmt.Sprintf("%d", c.UserID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		w.logger.WithFields(logging.Fields{
			"event":        "complaint_lookup_failed",
			"complaint_id": id,
		}).WithError(err).Warn("reply prompt without user id")
	}

	return fmt.Sprintf("📝 Reply to complaint #%d\n\n"+
		"Please send your reply in the format:\n"+
		"/reply %s Your response here", id, target)
}

// Pending lists pending complaints, newest first. Store failures yield an
// empty list.
func (w *Workflow) Pending(ctx context.Context, limit int) []domain.Complaint {
	return w.list(ctx, domain.ComplaintFilter{Status: domain.ComplaintPending, Limit: limit})
}

// History lists the complaints of one user, newest first.
func (w *Workflow) History(ctx context.Context, userID int64, limit int) []domain.Complaint {
	return w.list(ctx, domain.ComplaintFilter{UserID: userID, Limit: limit})
}

func (w *Workflow) list(ctx context.Context, filter domain.ComplaintFilter) []domain.Complaint {
	complaints, err := w.store.ListComplaints(ctx, filter)
	if err != nil {
		w.logger.WithFields(logging.Fields{
			"event":   "complaint_list_failed",
			"user_id": filter.UserID,
		}).WithError(err).Warn("could not list complaints")
		return nil
	}
	return complaints
}

func (w *Workflow) tellAdmin(ctx context.Context, log *logrus.Entry, text string) {
	if _, err := w.sender.SendText(ctx, w.admin.ID(), text); err != nil {
		log.WithField("event", "admin_notify_failed").WithError(err).Warn("admin was not informed")
	}
}
