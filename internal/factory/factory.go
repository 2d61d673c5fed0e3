package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/lobbysync/internal/api"
	"github.com/mcoot/lobbysync/internal/api/handler"
	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/dependencies/random"
	"github.com/mcoot/lobbysync/internal/metrics"
	"github.com/mcoot/lobbysync/internal/services/broadcast"
	"github.com/mcoot/lobbysync/internal/services/coordinator"
	"github.com/mcoot/lobbysync/internal/services/presence"
	"github.com/mcoot/lobbysync/internal/services/rooms"
	"github.com/mcoot/lobbysync/internal/session"
	"github.com/mcoot/lobbysync/internal/storage"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/transport/redisbus"
	"github.com/mcoot/lobbysync/internal/transport/ws"
	"github.com/mcoot/lobbysync/internal/web"
	webhandler "github.com/mcoot/lobbysync/internal/web/handler"
	"github.com/mcoot/lobbysync/internal/web/sse"
)

// Broadcast mode constants
const (
	BroadcastModeLocal = "local"
	BroadcastModeRedis = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Core
	Sessions    *session.Map
	Presence    *presence.Service
	Rooms       *rooms.Controller
	Dispatcher  *broadcast.Dispatcher
	Coordinator *coordinator.Coordinator

	// Transport
	Hub          *ws.Hub
	Gateway      *ws.Gateway
	DashboardHub *sse.Hub
	Metrics      *metrics.Metrics

	DashboardFeed *sse.Feed

	// Redis relay, nil in local mode. Intake is set on the owning node,
	// Forwarder on every other node.
	Publisher   *redisbus.Publisher
	Subscriber  *redisbus.Subscriber
	Intake      *redisbus.Intake
	Forwarder   *redisbus.Forwarder
	Lease       *redisbus.Lease
	owner       string
	redisClient *redis.Client

	// Read side of the HTTP surface; the registries on the owning node,
	// the relayed listings elsewhere
	snapshot  webhandler.SnapshotSource
	userCount handler.Counter
	roomCount handler.Counter

	ready  chan struct{}
	logger *slog.Logger
}

// countFunc adapts a count to handler.Counter
type countFunc func() int

func (f countFunc) Count(context.Context) int { return f() }

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// BroadcastMode selects how notifications reach connections ("local" or "redis")
	// If empty, defaults to "local"
	BroadcastMode string
	// RedisConfig holds Redis connection settings (required if BroadcastMode is "redis")
	RedisConfig *redisbus.Config
	// Gateway holds WebSocket settings; zero fields take ws defaults
	Gateway ws.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	mode := cfg.BroadcastMode
	if mode == "" {
		mode = BroadcastModeLocal
	}

	var relay *redisRelay
	switch mode {
	case BroadcastModeLocal:
	case BroadcastModeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when BroadcastMode is redis")
		}
		client, err := redisbus.NewClient(ctx, *cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		relay, err = newRedisRelay(ctx, client, *cfg.RedisConfig, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid BroadcastMode %q: must be 'local' or 'redis'", mode)
	}

	return newWithDependencies(memory.New(), clock.New(), random.New(), cfg.Gateway, relay, logger), nil
}

type redisRelay struct {
	client *redis.Client
	cfg    redisbus.Config
	lease  *redisbus.Lease
	owner  string
}

// newRedisRelay joins the relay and settles which node owns the lobby state
func newRedisRelay(ctx context.Context, client *redis.Client, cfg redisbus.Config, logger *slog.Logger) (*redisRelay, error) {
	lease := redisbus.NewLease(client, cfg, uuid.NewString(), logger)
	owner, err := lease.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &redisRelay{client: client, cfg: cfg, lease: lease, owner: owner}, nil
}

func (r *redisRelay) owns() bool {
	return r.owner == r.lease.Node()
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	gatewayCfg ws.Config,
	relay *redisRelay,
	logger *slog.Logger,
) *App {
	sessions := session.NewMap()
	presenceService := presence.New(store, clk, logger)
	roomController := rooms.NewController(store, presenceService, clk, rnd, logger)

	var app *App
	m := metrics.New(
		func() int { return app.userCount.Count(context.Background()) },
		func() int { return app.roomCount.Count(context.Background()) },
	)

	hub := ws.NewHub(m, logger)
	dashboardHub := sse.NewHub(logger)
	feed := sse.NewFeed(dashboardHub, logger)

	app = &App{
		Storage:       store,
		Clock:         clk,
		Random:        rnd,
		Sessions:      sessions,
		Presence:      presenceService,
		Rooms:         roomController,
		Hub:           hub,
		DashboardHub:  dashboardHub,
		DashboardFeed: feed,
		Metrics:       m,
		userCount:     presenceService,
		roomCount:     roomController,
		ready:         make(chan struct{}),
		logger:        logger,
	}

	// Local mode notifies connections and the dashboard directly. In redis
	// mode the owner publishes every notification and each node applies it
	// to its own connections and dashboard.
	var notifier broadcast.Notifier = broadcast.Fanout{hub, feed}
	if relay != nil {
		app.redisClient = relay.client
		app.Lease = relay.lease
		app.owner = relay.owner
		app.Publisher = redisbus.NewPublisher(relay.client, relay.cfg, logger)
		app.Subscriber = redisbus.NewSubscriber(relay.client, relay.cfg, redisbus.Sinks{hub, feed}, logger)
		notifier = app.Publisher
	}

	app.Dispatcher = broadcast.New(notifier, presenceService, roomController, logger)
	app.Coordinator = coordinator.New(sessions, presenceService, roomController, app.Dispatcher, m, logger)
	app.snapshot = app.Coordinator

	var events ws.EventHandler = app.Coordinator
	if relay != nil {
		if relay.owns() {
			app.Intake = redisbus.NewIntake(relay.client, relay.cfg, app.Coordinator, logger)
		} else {
			app.Forwarder = redisbus.NewForwarder(relay.client, relay.cfg, logger)
			events = app.Forwarder
			app.snapshot = feed
			app.userCount = countFunc(feed.UserCount)
			app.roomCount = countFunc(feed.RoomCount)
		}
	}
	app.Gateway = ws.NewGateway(hub, events, clk, gatewayCfg, logger)

	return app
}

// Owner reports whether this node runs the coordinator. Always true in
// local mode.
func (a *App) Owner() bool {
	return a.Forwarder == nil
}

// Handler returns the HTTP surface: health, /ws, /metrics and the dashboard
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:  a.logger,
		Clock:   a.Clock,
		Users:   a.userCount,
		Rooms:   a.roomCount,
		Gateway: a.Gateway,
		Metrics: a.Metrics.Handler(),
		Web: &web.RouterConfig{
			Logger:   a.logger,
			Snapshot: a.snapshot,
			Hub:      a.DashboardHub,
		},
	})
}

// Run starts the background loops and blocks until ctx is cancelled or one
// of them fails. In redis mode it fails with redisbus.ErrOwnerLost once the
// owning node goes away. See Ready for when events start flowing.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.DashboardHub.Run(ctx) })
	if a.Publisher != nil {
		g.Go(func() error { return a.Publisher.Run(ctx) })
	}
	if a.Subscriber != nil {
		g.Go(func() error { return a.Subscriber.Run(ctx) })
	}
	if a.Intake != nil {
		g.Go(func() error { return a.Intake.Run(ctx) })
	}
	if a.Lease != nil {
		if a.Owner() {
			g.Go(func() error { return a.Lease.Hold(ctx) })
		} else {
			g.Go(func() error { return a.Lease.Watch(ctx, a.owner) })
		}
	}
	g.Go(func() error { return a.markReady(ctx) })

	return g.Wait()
}

// markReady closes the ready channel once every subscription is live. A
// forwarding node then asks the owner for the current listings.
func (a *App) markReady(ctx context.Context) error {
	var waits []<-chan struct{}
	if a.Subscriber != nil {
		waits = append(waits, a.Subscriber.Ready())
	}
	if a.Intake != nil {
		waits = append(waits, a.Intake.Ready())
	}
	for _, w := range waits {
		select {
		case <-w:
		case <-ctx.Done():
			return nil
		}
	}

	if a.Forwarder != nil {
		if err := a.Forwarder.RequestSync(ctx); err != nil {
			return err
		}
	}
	close(a.ready)
	return nil
}

// Ready is closed once Run can deliver notifications
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Close drops every WebSocket connection, gives up ownership and releases
// the Redis client
func (a *App) Close() error {
	a.Gateway.Shutdown()
	if a.redisClient == nil {
		return nil
	}

	var errs []error
	if a.Lease != nil && a.Owner() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.Lease.Release(ctx))
	}
	errs = append(errs, a.redisClient.Close())
	return errors.Join(errs...)
}
