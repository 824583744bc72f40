package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	libdb "lancenter/backend/libs/db"
	libredis "lancenter/backend/libs/redis"
	"lancenter/backend/services/terminals-service/internal/auth"
	"lancenter/backend/services/terminals-service/internal/broadcast"
	"lancenter/backend/services/terminals-service/internal/config"
	"lancenter/backend/services/terminals-service/internal/handlers"
	httpserver "lancenter/backend/services/terminals-service/internal/http"
	"lancenter/backend/services/terminals-service/internal/repository"
	"lancenter/backend/services/terminals-service/internal/repository/memory"
	"lancenter/backend/services/terminals-service/internal/service"
	"lancenter/backend/services/terminals-service/internal/wire"
	"lancenter/backend/services/terminals-service/internal/ws"
	"lancenter/backend/services/terminals-service/internal/zones"
)

// App wires terminals-service dependencies.
type App struct {
	server      *httpserver.Server
	broadcaster *broadcast.Broadcaster
	manager     *ws.Manager
	controller  *service.Controller
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// notifierFunc lets the controller notify a broadcaster built after it.
type notifierFunc func(tenantID string)

func (f notifierFunc) TerminalsChanged(tenantID string) { f(tenantID) }

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var bus broadcast.Bus
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		bus = broadcast.NewRedisBus(a.redisClient, cfg.Redis.Channel, logger)
	}

	var broadcaster *broadcast.Broadcaster
	notify := notifierFunc(func(tenantID string) { broadcaster.TerminalsChanged(tenantID) })

	a.controller = service.NewController(
		store,
		zones.NewService(cfg.Zones.CacheTTL, logger),
		notify,
		service.Options{
			Policy:           service.AddTimePolicy(cfg.Pricing.AddTimePolicy),
			OperationTimeout: cfg.OperationTimeout(),
		},
		logger,
	)

	a.manager = ws.NewManager(cfg.WebSocket.PingInterval, logger)
	broadcaster = broadcast.New(a.controller, a.manager, bus, cfg.WebSocket.BroadcastWait, logger)
	a.broadcaster = broadcaster

	router := wire.NewRouter()
	handlers.Register(router, a.controller, nil)

	var limiter *wire.ClientLimiter
	if cfg.WebSocket.CommandRate > 0 {
		limiter = wire.NewClientLimiter(rate.Limit(cfg.WebSocket.CommandRate), cfg.WebSocket.CommandBurst)
	}
	processor := wire.NewProcessor(router, limiter, logger)

	wsServer := ws.NewServer(a.manager, processor, broadcaster, ws.Options{
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
	}, logger)

	tokens := auth.NewTokenService(cfg.JWT.Secret, 0)
	var pinger httpserver.Pinger
	if a.db != nil {
		pinger = a.db
	}
	routes := httpserver.Routes{
		Health:    httpserver.NewHealthHandler(pinger),
		Terminals: httpserver.NewTerminalsHandler(a.controller, logger),
		WS:        wsServer.HandleWS,
		Auth:      auth.Middleware(tokens),
	}
	a.server = httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		a.logger.Warn("using in-memory storage, state is lost on restart")
		return memory.NewStore(), nil
	}

	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	a.db = sqlDB
	return repository.NewStore(sqlDB, a.logger), nil
}

// Controller exposes the lifecycle controller.
func (a *App) Controller() *service.Controller {
	return a.controller
}

// Run starts the ping loop, the broadcaster and the HTTP server, and stops them when
// ctx ends or any of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.manager.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := a.broadcaster.Run(ctx); err != nil {
			a.logger.Error("broadcaster stopped", zap.Error(err))
		}
	}()

	err := a.server.Run(ctx)
	a.manager.CloseAll()
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
