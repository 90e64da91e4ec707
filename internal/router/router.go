// Package router classifies incoming Telegram updates and dispatches each
// one to exactly one feature handler, containing any failure it raises.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/command"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/admin"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/feature/moderation"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

const (
	// DefaultTimeout bounds one update when no timeout is configured.
	DefaultTimeout = 8 * time.Second

	apologyTimeout = 5 * time.Second

	apologyText     = "😔 Sorry, something went wrong while processing your request. Please try again later."
	rateLimitedText = "⏳ You're sending messages too fast. Please wait a moment and try again."
)

type menu interface {
	Welcome(ctx context.Context, chatID int64, from domain.User) error
	HandleCallback(ctx context.Context, cb domain.Callback) error
}

type console interface {
	HandleCommand(ctx context.Context, chatID, callerID int64, cmd command.Command) error
	HandleCallback(ctx context.Context, cb domain.Callback) error
}

type complaints interface {
	Submit(ctx context.Context, from domain.User, chatID int64, text string) (complaint.Receipt, error)
}

type moderator interface {
	HandleGroupMessage(ctx context.Context, msg moderation.GroupMessage) (moderation.Outcome, error)
}

type membership interface {
	HandleJoinRequest(ctx context.Context, chatID int64, from domain.User) error
	HandleMemberLeft(ctx context.Context, chatID int64, actorID int64, left domain.User) error
}

type notifier interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...messenger.SendOption) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type deliveryGuard interface {
	FirstDelivery(ctx context.Context, updateID int64) bool
}

type rateLimiter interface {
	Allow(userID int64) bool
}

// Options wires a Router. Guard and Limiter are optional. BotUsername, when
// known, makes the router ignore commands addressed to other bots.
type Options struct {
	Admin       domain.Admin
	GroupID     int64
	Timeout     time.Duration
	BotUsername string

	Menu       menu
	Console    console
	Complaints complaints
	Moderation moderator
	Membership membership
	Notifier   notifier

	Guard   deliveryGuard
	Limiter rateLimiter
	Logger  *logrus.Entry
}

// Router holds the downstream components and dispatches by Kind.
type Router struct {
	admin       domain.Admin
	groupID     int64
	timeout     time.Duration
	botUsername string

	menu       menu
	console    console
	complaints complaints
	moderation moderator
	membership membership
	notifier   notifier

	guard   deliveryGuard
	limiter rateLimiter
	logger  *logrus.Entry
}

// New validates the options and builds a Router.
func New(opts Options) (*Router, error) {
	if opts.Admin.ID() == 0 {
		return nil, errors.New("admin id is required")
	}
	if opts.Menu == nil || opts.Console == nil || opts.Complaints == nil || opts.Moderation == nil || opts.Membership == nil {
		return nil, errors.New("all feature handlers are required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	return &Router{
		admin:       opts.Admin,
		groupID:     opts.GroupID,
		timeout:     timeout,
		botUsername: opts.BotUsername,
		menu:        opts.Menu,
		console:     opts.Console,
		complaints:  opts.Complaints,
		moderation:  opts.Moderation,
		membership:  opts.Membership,
		notifier:    opts.Notifier,
		guard:       opts.Guard,
		limiter:     opts.Limiter,
		logger:      logger,
	}, nil
}

// Handle processes one update. It never panics and never returns an error:
// failures are logged and answered with an apology so the webhook can always
// acknowledge the delivery.
func (r *Router) Handle(ctx context.Context, update *models.Update) Kind {
	kind := Classify(update, r.admin, r.groupID)
	if r.foreignCommand(kind, update) {
		kind = KindIgnored
	}
	updateCount.WithLabelValues(string(kind)).Inc()
	if kind == KindIgnored {
		return kind
	}

	meta := describe(update)
	log := logging.ForUpdate(r.logger, logging.Update{
		ID:     update.ID,
		Kind:   string(kind),
		UserID: meta.userID,
		ChatID: meta.chatID,
	})

	if r.guard != nil && !r.guard.FirstDelivery(ctx, update.ID) {
		duplicateCount.Inc()
		log.WithField("event", "router_duplicate_update").Info("skipping redelivered update")
		return kind
	}

	if r.rateLimited(ctx, kind, meta) {
		rateLimitedCount.WithLabelValues(string(kind)).Inc()
		log.WithField("event", "router_rate_limited").Warn("update dropped by rate limit")
		return kind
	}

	handlerCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.safeDispatch(handlerCtx, kind, update, meta)
	handlerDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err == nil {
		return kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
		handlerFailureCount.WithLabelValues(string(kind), "timeout").Inc()
		log.WithField("event", "router_handler_timeout").WithError(err).Warn("handler exceeded its deadline")
		return kind
	}

	handlerFailureCount.WithLabelValues(string(kind), "error").Inc()
	log.WithField("event", "router_handler_failed").WithError(err).Error("handler failed")
	r.apologize(ctx, log, kind, meta)

	return kind
}

func (r *Router) safeDispatch(ctx context.Context, kind Kind, update *models.Update, meta updateMeta) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	return r.dispatch(ctx, kind, update, meta)
}

func (r *Router) dispatch(ctx context.Context, kind Kind, update *models.Update, meta updateMeta) error {
	switch kind {
	case KindStartCommand:
		return r.menu.Welcome(ctx, meta.chatID, toUser(update.Message.From))
	case KindAdminReplyCommand, KindAdminPanelCommand, KindAdminPrivateCommand:
		cmd, _ := command.Parse(update.Message.Text)
		return r.console.HandleCommand(ctx, meta.chatID, meta.userID, cmd)
	case KindAdminGroupCommand:
		cmd, ok := command.Parse(update.Message.Text)
		if !ok || !admin.IsAdminCommand(cmd.Name) {
			return nil
		}
		return r.console.HandleCommand(ctx, meta.chatID, meta.userID, cmd)
	case KindCallbackQuery:
		cb := toCallback(update.CallbackQuery, meta.chatID)
		if admin.IsAdminCallback(cb.Data) {
			return r.console.HandleCallback(ctx, cb)
		}
		return r.menu.HandleCallback(ctx, cb)
	case KindPrivateComplaint:
		_, err := r.complaints.Submit(ctx, toUser(update.Message.From), meta.chatID, strings.TrimSpace(update.Message.Text))
		return err
	case KindGroupMessage:
		msg := update.Message
		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		_, err := r.moderation.HandleGroupMessage(ctx, moderation.GroupMessage{
			ChatID:    meta.chatID,
			MessageID: msg.ID,
			Sender:    toUser(msg.From),
			Text:      text,
		})
		return err
	case KindMemberLeft:
		return r.membership.HandleMemberLeft(ctx, meta.chatID, meta.userID, toUser(update.Message.LeftChatMember))
	case KindJoinRequest:
		req := update.ChatJoinRequest
		return r.membership.HandleJoinRequest(ctx, req.Chat.ID, toUser(&req.From))
	default:
		return nil
	}
}

// foreignCommand reports whether a command update names another bot.
func (r *Router) foreignCommand(kind Kind, update *models.Update) bool {
	switch kind {
	case KindStartCommand, KindAdminReplyCommand, KindAdminPanelCommand, KindAdminPrivateCommand, KindAdminGroupCommand:
	default:
		return false
	}
	cmd, ok := command.Parse(update.Message.Text)
	return ok && !cmd.AddressedTo(r.botUsername)
}

// rateLimited applies the per-user limit to non-admin private traffic and
// tells the user why nothing happened.
func (r *Router) rateLimited(ctx context.Context, kind Kind, meta updateMeta) bool {
	if r.limiter == nil || r.admin.IsAdmin(meta.userID) {
		return false
	}
	switch kind {
	case KindStartCommand, KindPrivateComplaint, KindCallbackQuery:
	default:
		return false
	}
	if r.limiter.Allow(meta.userID) {
		return false
	}

	if kind == KindCallbackQuery {
		if meta.callbackID != "" {
			_ = r.notifier.AnswerCallback(ctx, meta.callbackID, rateLimitedText)
		}
		return true
	}
	_, _ = r.notifier.SendText(ctx, meta.chatID, rateLimitedText)
	return true
}

// apologize tells the originating chat that the request failed. Membership
// events have no conversation to answer in.
func (r *Router) apologize(ctx context.Context, log *logrus.Entry, kind Kind, meta updateMeta) {
	if kind == KindJoinRequest || kind == KindMemberLeft || meta.chatID == 0 {
		return
	}

	apologyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apologyTimeout)
	defer cancel()

	if _, err := r.notifier.SendText(apologyCtx, meta.chatID, apologyText); err != nil {
		log.WithField("event", "router_apology_failed").WithError(err).Warn("could not send apology")
	}
}

type updateMeta struct {
	userID     int64
	chatID     int64
	callbackID string
}

func describe(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID: userID(update.Message.From),
			chatID: update.Message.Chat.ID,
		}
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		chat := messageChatID(cq.Message)
		if chat == 0 {
			// Private chat ids equal the user id.
			chat = cq.From.ID
		}
		return updateMeta{
			userID:     cq.From.ID,
			chatID:     chat,
			callbackID: cq.ID,
		}
	case update.ChatJoinRequest != nil:
		return updateMeta{
			userID: update.ChatJoinRequest.From.ID,
			chatID: update.ChatJoinRequest.Chat.ID,
		}
	default:
		return updateMeta{}
	}
}

func toUser(u *models.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	return domain.User{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func toCallback(cq *models.CallbackQuery, chatID int64) domain.Callback {
	cb := domain.Callback{
		ID:     cq.ID,
		ChatID: chatID,
		From:   toUser(&cq.From),
		Data:   cq.Data,
	}
	if cq.Message.Message != nil {
		cb.MessageID = cq.Message.Message.ID
	}
	return cb
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
