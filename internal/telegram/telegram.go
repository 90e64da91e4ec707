// Package telegram hosts the Telegram client in webhook mode.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/config"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/router"
)

type webhookBot interface {
	StartWebhook(ctx context.Context)
	WebhookHandler() http.HandlerFunc
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
	GetMe(ctx context.Context) (*models.User, error)
}

// Dispatcher receives every decoded update.
type Dispatcher interface {
	Handle(ctx context.Context, update *models.Update) router.Kind
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
		"chat_join_request",
	}

	createBot = func(token string, options ...bot.Option) (webhookBot, error) {
		return bot.New(token, options...)
	}
)

// WebhookStatus is the webhook registration as Telegram reports it, plus
// the bot identity.
type WebhookStatus struct {
	URL            string `json:"url"`
	PendingUpdates int64  `json:"pending_update_count"`
	LastError      string `json:"last_error_message,omitempty"`
	BotID          int64  `json:"bot_id"`
	BotUsername    string `json:"bot_username"`
}

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	bot    webhookBot
	logger *logrus.Entry

	mu         sync.RWMutex
	dispatcher Dispatcher
}

// NewClient initializes the Telegram bot for webhook delivery. Updates are
// logged and dropped until Route installs a dispatcher.
func NewClient(cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{logger: logger}

	options := []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handle),
		bot.WithErrorsHandler(errorHandler(logger)),
	}
	if cfg.WebhookSecret != "" {
		options = append(options, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	tgBot, err := createBot(cfg.TelegramToken, options...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	client.bot = tgBot

	return client, nil
}

// Route installs the dispatcher that receives decoded updates.
func (c *Client) Route(d Dispatcher) {
	c.mu.Lock()
	c.dispatcher = d
	c.mu.Unlock()
}

// Bot returns the SDK client for outbound calls, or nil when the client was
// built around something else.
func (c *Client) Bot() *bot.Bot {
	b, _ := c.bot.(*bot.Bot)
	return b
}

// Start runs the webhook worker until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram webhook worker")

	c.bot.StartWebhook(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram webhook worker stopped")
}

// WebhookHandler decodes webhook deliveries and queues them for the worker.
func (c *Client) WebhookHandler() http.Handler {
	return c.bot.WebhookHandler()
}

// SetWebhook registers url with Telegram for the allowed update types.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("webhook url is required")
	}

	ok, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string(defaultAllowedUpdates),
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if !ok {
		return errors.New("set webhook: telegram refused the request")
	}

	c.logger.WithFields(logging.Fields{
		"event": "webhook_set",
		"url":   url,
	}).Info("webhook registered")
	return nil
}

// DeleteWebhook removes the registration, optionally dropping queued updates.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	ok, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: dropPending})
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if !ok {
		return errors.New("delete webhook: telegram refused the request")
	}

	c.logger.WithFields(logging.Fields{
		"event":        "webhook_deleted",
		"drop_pending": dropPending,
	}).Info("webhook removed")
	return nil
}

// WebhookInfo reports the current registration and the bot identity.
func (c *Client) WebhookInfo(ctx context.Context) (WebhookStatus, error) {
	info, err := c.bot.GetWebhookInfo(ctx)
	if err != nil {
		return WebhookStatus{}, fmt.Errorf("get webhook info: %w", err)
	}
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return WebhookStatus{}, fmt.Errorf("get bot identity: %w", err)
	}

	status := WebhookStatus{}
	if info != nil {
		status.URL = info.URL
		status.PendingUpdates = int64(info.PendingUpdateCount)
		status.LastError = info.LastErrorMessage
	}
	if me != nil {
		status.BotID = me.ID
		status.BotUsername = me.Username
	}
	return status, nil
}

func (c *Client) handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	c.mu.RLock()
	d := c.dispatcher
	c.mu.RUnlock()

	if d == nil {
		c.logger.WithFields(logging.Fields{
			"event":     "telegram_update_dropped",
			"update_id": update.ID,
		}).Warn("no dispatcher installed")
		return
	}

	kind := d.Handle(ctx, update)
	c.logger.WithFields(logging.Fields{
		"event":     "telegram_update",
		"update_id": update.ID,
		"kind":      string(kind),
	}).Debug("telegram update handled")
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram webhook error")
	}
}
