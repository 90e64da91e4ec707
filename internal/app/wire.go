package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/config"
	"tg_support_bot/internal/dedupe"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/admin"
	"tg_support_bot/internal/feature/autoresponse"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/feature/group"
	"tg_support_bot/internal/feature/moderation"
	"tg_support_bot/internal/feature/support"
	"tg_support_bot/internal/feature/user"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
	"tg_support_bot/internal/ratelimit"
	"tg_support_bot/internal/router"
)

// Messenger is every outbound capability the features use together.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	LiftRestrictions(ctx context.Context, chatID, userID int64) error
	KickMember(ctx context.Context, chatID, userID int64) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
}

// Deps are the already-opened collaborators the router is assembled from.
// Guard may be nil.
type Deps struct {
	Config      config.Config
	Store       domain.Gateway
	Messenger   Messenger
	Guard       dedupe.Guard
	BotUsername string
	Logger      *logrus.Entry
}

// BuildRouter assembles every feature around one store and one messenger.
func BuildRouter(deps Deps) (*router.Router, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Messenger == nil {
		return nil, errors.New("messenger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}
	cfg := deps.Config
	adm := domain.Admin(cfg.AdminID)

	registrar := user.NewRegistrar(deps.Store, logger)

	workflow, err := complaint.NewWorkflow(deps.Store, registrar, deps.Messenger, adm, logger)
	if err != nil {
		return nil, err
	}

	menu, err := support.NewMenu(registrar, workflow, deps.Messenger, support.Contact{
		Admin:   cfg.SupportContact,
		Email:   cfg.SupportEmail,
		Website: cfg.SupportWebsite,
	}, logger)
	if err != nil {
		return nil, err
	}

	members, err := moderation.NewMembers(deps.Messenger, deps.Store, logger)
	if err != nil {
		return nil, err
	}

	console, err := admin.NewConsole(admin.Options{
		Store:      deps.Store,
		Complaints: workflow,
		Members:    members,
		Messenger:  deps.Messenger,
		Admin:      adm,
		GroupID:    cfg.GroupID,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	responder := autoresponse.NewResponder(deps.Store, deps.Messenger, logger)
	engine, err := moderation.NewEngine(deps.Store, deps.Messenger, responder, logger)
	if err != nil {
		return nil, err
	}

	membership, err := group.NewMembership(deps.Messenger, registrar, deps.BotUsername, cfg.GroupInviteLink, logger)
	if err != nil {
		return nil, err
	}

	opts := router.Options{
		Admin:       adm,
		GroupID:     cfg.GroupID,
		Timeout:     cfg.HandlerTimeout,
		BotUsername: deps.BotUsername,
		Menu:        menu,
		Console:     console,
		Complaints:  workflow,
		Moderation:  engine,
		Membership:  membership,
		Notifier:    deps.Messenger,
		Limiter:     ratelimit.New(cfg.RateLimit),
		Logger:      logger,
	}
	if deps.Guard != nil {
		opts.Guard = deps.Guard
	}

	return router.New(opts)
}
