// Package daemon composes the smsd process: store, transport, send and
// ingest pipelines, and the HTTP API, wired through fx.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/guepardlover77/sms-app/internal/api"
	"github.com/guepardlover77/sms-app/internal/bus"
	"github.com/guepardlover77/sms-app/internal/config"
	"github.com/guepardlover77/sms-app/internal/contacts"
	"github.com/guepardlover77/sms-app/internal/conv"
	"github.com/guepardlover77/sms-app/internal/ingest"
	"github.com/guepardlover77/sms-app/internal/lock"
	"github.com/guepardlover77/sms-app/internal/logging"
	"github.com/guepardlover77/sms-app/internal/profile"
	"github.com/guepardlover77/sms-app/internal/send"
	"github.com/guepardlover77/sms-app/internal/status"
	"github.com/guepardlover77/sms-app/internal/store"
	"github.com/guepardlover77/sms-app/internal/transport"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	ListenAddr  string // optional override; empty = use config
	Config      *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBook,
			provideAggregator,
			provideThreadView,
			provideTransport,
			provideCoordinator,
			provideIngestor,
			provideAPIServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus, logger *zap.Logger) *status.Machine {
	return status.NewMachine(b, logger)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBook(db *store.DB) *contacts.Book {
	return contacts.NewBook(db)
}

func provideAggregator(db *store.DB, book *contacts.Book, logger *zap.Logger) *conv.Aggregator {
	return conv.NewAggregator(db, book, logger)
}

func provideThreadView(db *store.DB) *conv.ThreadView {
	return conv.NewThreadView(db)
}

func provideTransport(p Params, logger *zap.Logger) (transport.Transport, error) {
	switch p.Config.Transport.Kind {
	case "", "loopback":
		latency := time.Duration(p.Config.Transport.LoopbackDelayMs) * time.Millisecond
		return transport.NewLoopback(latency, p.Config.Transport.LoopbackEcho, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", p.Config.Transport.Kind)
	}
}

func provideCoordinator(db *store.DB, t transport.Transport, b *bus.Bus, logger *zap.Logger) *send.Coordinator {
	return send.NewCoordinator(db, t, b, logger)
}

func provideIngestor(db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Ingestor {
	return ingest.NewIngestor(db, b, logger)
}

func provideAPIServer(
	p Params,
	agg *conv.Aggregator,
	threads *conv.ThreadView,
	coordinator *send.Coordinator,
	book *contacts.Book,
	machine *status.Machine,
	logger *zap.Logger,
) *api.Server {
	addr := p.ListenAddr
	if addr == "" {
		addr = p.Config.HTTP.Listen
	}
	return api.NewServer(agg, threads, coordinator, book, machine, addr, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *api.Server,
	lk *lock.Lock,
	t transport.Transport,
	coordinator *send.Coordinator,
	ingestor *ingest.Ingestor,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) {
	var inboundPump *pump
	if r, ok := t.(transport.Receiver); ok {
		inboundPump = newPump(r, b, logger)
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Ingestion subscribes before the pump starts so no inbound
			// event is published without a consumer.
			ingestor.Start(context.Background())
			coordinator.Start(context.Background())
			if inboundPump != nil {
				inboundPump.Start(context.Background())
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.StateError, "http server failed")
				}
			}()

			_ = machine.Transition(status.StateReady, "startup complete")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if inboundPump != nil {
				inboundPump.Stop()
			}
			coordinator.Stop()
			ingestor.Stop()
			if c, ok := t.(interface{ Close() }); ok {
				c.Close()
			}
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error stopping http server", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
