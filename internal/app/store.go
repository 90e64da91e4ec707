// Package app holds the wiring shared by the bot process and the operator
// CLI: backend selection, the duplicate guard, router assembly and process
// supervision.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/config"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/store"
	"tg_support_bot/internal/store/memstore"
	"tg_support_bot/internal/store/supabase"
)

const (
	storeConnectTimeout = 10 * time.Second
	storeIndexTimeout   = 5 * time.Second
)

// Backend is an opened data store gateway and its teardown.
type Backend struct {
	Name    string
	Gateway domain.Gateway
	close   func(ctx context.Context) error
}

// Close releases the backend's connections.
func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// OpenStore connects the backend selected by STORE_BACKEND. Mongo gets its
// indexes ensured; Supabase is pinged once so a bad key fails at startup.
func OpenStore(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Backend, error) {
	if logger == nil {
		logger = logging.Logger()
	}
	log := logger.WithField("backend", cfg.StoreBackend)

	switch cfg.StoreBackend {
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		manager, err := store.NewManager(connectCtx, cfg)
		cancel()
		if err != nil {
			return nil, err
		}
		log.WithField("event", "mongo_connect").Info("connected to mongo")

		indexCtx, cancelIndexes := context.WithTimeout(ctx, storeIndexTimeout)
		err = manager.EnsureBaseIndexes(indexCtx)
		cancelIndexes()
		if err != nil {
			_ = manager.Close(context.Background())
			return nil, err
		}
		log.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

		return &Backend{Name: cfg.StoreBackend, Gateway: store.NewGateway(manager), close: manager.Close}, nil

	case config.BackendSupabase:
		gateway, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, supabase.WithLogger(logger.WithField("component", "supabase")))
		if err != nil {
			return nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		err = gateway.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		log.WithField("event", "supabase_connect").Info("connected to supabase")

		return &Backend{Name: cfg.StoreBackend, Gateway: gateway}, nil

	case config.BackendMemory:
		if !cfg.IsDevelopment() {
			log.WithField("event", "memory_store_in_production").Warn("in-memory store loses all data on restart")
		}
		return &Backend{Name: cfg.StoreBackend, Gateway: memstore.New()}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
