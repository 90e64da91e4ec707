// Package admin implements the admin console: the /admin panel, admin text
// commands and the admin inline buttons.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

const panelText = "🔧 Admin Control Panel\n\nWelcome to the admin dashboard. Choose an option:"

// Store is the part of the data store gateway the console needs.
type Store interface {
	GetUser(ctx context.Context, userID int64) (domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CountComplaints(ctx context.Context, status domain.ComplaintStatus) (int64, error)

	AddBannedWord(ctx context.Context, word string) error
	RemoveBannedWord(ctx context.Context, word string) (bool, error)
	ListBannedWords(ctx context.Context) ([]domain.BannedWord, error)

	AddAutoResponse(ctx context.Context, trigger, response string) error
	RemoveAutoResponse(ctx context.Context, trigger string) (bool, error)
	ListAutoResponses(ctx context.Context) ([]domain.AutoResponse, error)

	GetGroupSettings(ctx context.Context) (domain.GroupSettings, error)
	UpdateGroupSettings(ctx context.Context, settings domain.GroupSettings) error
}

type complaints interface {
	ReplyToUser(ctx context.Context, callerID, targetUserID int64, text string) (bool, error)
	Close(ctx context.Context, id int64) (complaint.CloseResult, error)
	PromptReply(ctx context.Context, chatID, id int64) error
	Pending(ctx context.Context, limit int) []domain.Complaint
	History(ctx context.Context, userID int64, limit int) []domain.Complaint
}

type members interface {
	Kick(ctx context.Context, chatID, userID int64) error
	Ban(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) error
	Unmute(ctx context.Context, chatID, userID int64) error
}

type consoleMessenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Console serves every admin-only interaction. All entry points check the
// caller through domain.Admin.
type Console struct {
	store      Store
	complaints complaints
	members    members
	messenger  consoleMessenger
	admin      domain.Admin
	groupID    int64
	logger     *logrus.Entry
}

// Options configures a Console.
type Options struct {
	Store      Store
	Complaints complaints
	Members    members
	Messenger  consoleMessenger
	Admin      domain.Admin
	// GroupID is the moderated group used by member commands sent in private.
	GroupID int64
	Logger  *logrus.Entry
}

// NewConsole validates the dependencies and builds a Console.
func NewConsole(opts Options) (*Console, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Complaints == nil {
		return nil, errors.New("complaint workflow is required")
	}
	if opts.Messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if opts.Admin.ID() == 0 {
		return nil, errors.New("admin id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	return &Console{
		store:      opts.Store,
		complaints: opts.Complaints,
		members:    opts.Members,
		messenger:  opts.Messenger,
		admin:      opts.Admin,
		groupID:    opts.GroupID,
		logger:     logger,
	}, nil
}

// ShowPanel sends the admin dashboard to chatID.
func (c *Console) ShowPanel(ctx context.Context, chatID int64) error {
	return c.send(ctx, chatID, panelText, messenger.WithKeyboard(messenger.AdminPanel()))
}

func (c *Console) send(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) error {
	if _, err := c.messenger.SendText(ctx, chatID, text, opts...); err != nil {
		return fmt.Errorf("send admin reply: %w", err)
	}
	return nil
}

// settings returns the stored settings, or defaults when none were written
// yet.
func (c *Console) settings(ctx context.Context) (domain.GroupSettings, error) {
	settings, err := c.store.GetGroupSettings(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultGroupSettings(), nil
	}
	if err != nil {
		return domain.GroupSettings{}, err
	}
	return settings.Normalize(), nil
}

func (c *Console) storeFailed(event string, err error) {
	c.logger.WithFields(logging.Fields{
		"event":   event,
		"user_id": c.admin.ID(),
	}).WithError(err).Warn("admin store operation failed")
}

// isGroupChat relies on Telegram group and supergroup ids being negative.
func isGroupChat(chatID int64) bool {
	return chatID < 0
}
