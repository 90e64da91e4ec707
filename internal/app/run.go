package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tg_support_bot/internal/logging"
)

// DefaultShutdownTimeout bounds the graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second

var errWorkerStopped = errors.New("webhook worker stopped unexpectedly")

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type webhookWorker interface {
	Start(ctx context.Context)
}

// Serve runs the HTTP server and the webhook worker until ctx is canceled or
// either of them fails, then shuts the server down.
func Serve(ctx context.Context, srv httpServer, worker webhookWorker, shutdownTimeout time.Duration, logger *logrus.Entry) error {
	if logger == nil {
		logger = logging.Logger()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.ListenAndServe)

	g.Go(func() error {
		worker.Start(gctx)
		if gctx.Err() == nil {
			return errWorkerStopped
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.WithField("event", "shutdown_started").Info("stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
