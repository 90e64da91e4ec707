// Package server exposes the bot's HTTP surface: the Telegram webhook,
// container probes, webhook management and metrics.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/telegram"
)

const (
	storePingTimeout  = 2 * time.Second
	webhookOpTimeout  = 10 * time.Second
	readHeaderTimeout = 2 * time.Second
	listenPrefix      = ":"

	// WebhookPath is where Telegram delivers updates.
	WebhookPath = "/webhook"
)

// StoreChecker reports whether the data store is reachable.
type StoreChecker interface {
	Ping(ctx context.Context) error
}

// Webhook is the Telegram side of the webhook lifecycle.
type Webhook interface {
	WebhookHandler() http.Handler
	SetWebhook(ctx context.Context, url, secret string) error
	WebhookInfo(ctx context.Context) (telegram.WebhookStatus, error)
}

// Options configures a Server. Secret guards the management endpoints when
// set; PublicURL overrides the request host when registering the webhook.
type Options struct {
	Port      int
	Store     StoreChecker
	Webhook   Webhook
	Secret    string
	PublicURL string
	Logger    *logrus.Entry
}

// Server owns the underlying HTTP server.
type Server struct {
	server    *http.Server
	logger    *logrus.Entry
	store     StoreChecker
	webhook   Webhook
	secret    string
	publicURL string
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type setResponse struct {
	OK      bool   `json:"ok"`
	Webhook string `json:"webhook"`
}

// NewServer builds the mux and HTTP server for the given port.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:    logger,
		store:     opts.Store,
		webhook:   opts.Webhook,
		secret:    opts.Secret,
		publicURL: strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebhookPath, srv.handleWebhook)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/webhook/info", srv.authorized(srv.handleWebhookInfo))
	mux.HandleFunc("/webhook/set", srv.authorized(srv.handleWebhookSet))
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", listenPrefix, opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// Handler exposes the mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

// handleWebhook hands the delivery to the SDK and always acknowledges it so
// Telegram never retries an update the router has already contained.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webhookRequests.WithLabelValues("rejected").Inc()
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, s.logger, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	if s.webhook == nil {
		webhookRequests.WithLabelValues("unrouted").Inc()
		s.logger.WithField("event", "webhook_unrouted").Warn("webhook received before telegram client was ready")
		w.WriteHeader(http.StatusOK)
		return
	}

	ack := &ackWriter{ResponseWriter: w, status: http.StatusOK}
	s.webhook.WebhookHandler().ServeHTTP(ack, r)
	if ack.status != http.StatusOK {
		webhookRequests.WithLabelValues("swallowed").Inc()
		s.logger.WithFields(logging.Fields{
			"event":  "webhook_swallowed",
			"status": ack.status,
		}).Warn("webhook handler reported failure, acknowledging anyway")
	} else {
		webhookRequests.WithLabelValues("ok").Inc()
	}
	if !ack.wrote {
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	storeStatus := "ok"

	if s.store == nil {
		storeStatus = "error"
		s.logger.WithField("event", "health_store_missing").Warn("store checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(r.Context(), storePingTimeout)
		err := s.store.Ping(pingCtx)
		cancel()

		if err != nil {
			storeStatus = "error"
			s.logger.WithField("event", "health_store_error").WithError(err).Warn("store ping failed during health check")
		}
	}

	if storeStatus != "ok" {
		resp.Status = "degraded"
		resp.Store = "error"
	}

	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *Server) handleWebhookInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, s.logger, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.webhook == nil {
		writeJSON(w, s.logger, http.StatusServiceUnavailable, errorResponse{Error: "telegram client unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), webhookOpTimeout)
	defer cancel()

	status, err := s.webhook.WebhookInfo(ctx)
	if err != nil {
		s.logger.WithField("event", "webhook_info_failed").WithError(err).Error("could not read webhook info")
		writeJSON(w, s.logger, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, s.logger, http.StatusOK, status)
}

func (s *Server) handleWebhookSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.logger, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.webhook == nil {
		writeJSON(w, s.logger, http.StatusServiceUnavailable, errorResponse{Error: "telegram client unavailable"})
		return
	}

	url := s.webhookURL(r)

	ctx, cancel := context.WithTimeout(r.Context(), webhookOpTimeout)
	defer cancel()

	if err := s.webhook.SetWebhook(ctx, url, s.secret); err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "webhook_set_failed",
			"url":   url,
		}).WithError(err).Error("could not register webhook")
		writeJSON(w, s.logger, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, s.logger, http.StatusOK, setResponse{OK: true, Webhook: url})
}

// WebhookURL joins a public base URL with the webhook path.
func WebhookURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + WebhookPath
}

func (s *Server) webhookURL(r *http.Request) string {
	if s.publicURL != "" {
		return WebhookURL(s.publicURL)
	}
	return WebhookURL("https://" + r.Host)
}

// authorized requires "Authorization: Bearer <secret>" when a secret is set.
func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			s.logger.WithFields(logging.Fields{
				"event": "http_unauthorized",
				"path":  r.URL.Path,
			}).Warn("rejected management request")
			writeJSON(w, s.logger, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		next(w, r)
	}
}

// ackWriter records the status the wrapped handler chose and replaces any
// failure status with 200.
type ackWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (a *ackWriter) WriteHeader(code int) {
	a.status = code
	if a.wrote {
		return
	}
	a.wrote = true
	a.ResponseWriter.WriteHeader(http.StatusOK)
}

func (a *ackWriter) Write(b []byte) (int, error) {
	if !a.wrote {
		a.wrote = true
		a.ResponseWriter.WriteHeader(http.StatusOK)
	}
	if a.status != http.StatusOK {
		// Drop error bodies; the delivery is acknowledged as a success.
		return len(b), nil
	}
	return a.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, logger *logrus.Entry, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithField("event", "http_write_error").WithError(err).Error("failed to encode response")
	}
}
