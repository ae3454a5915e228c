package app

import (
	"context"
	"database/sql"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "chargeslot/backend/libs/db"
	"chargeslot/backend/libs/mq"
	libredis "chargeslot/backend/libs/redis"
	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/claim"
	"chargeslot/backend/services/reservations-service/internal/config"
	httpserver "chargeslot/backend/services/reservations-service/internal/http"
	"chargeslot/backend/services/reservations-service/internal/http/handlers"
	"chargeslot/backend/services/reservations-service/internal/http/middleware"
	redisstore "chargeslot/backend/services/reservations-service/internal/redis"
	"chargeslot/backend/services/reservations-service/internal/repository"
	"chargeslot/backend/services/reservations-service/internal/service"
)

// App wires reservations-service dependencies.
type App struct {
	server      *httpserver.Server
	db          *sql.DB
	redisClient *redis.Client
	publisher   *mq.Publisher
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = sqlDB

	if cfg.Database.ApplySchema {
		if err := repository.EnsureSchema(ctx, sqlDB); err != nil {
			a.Close()
			return nil, err
		}
	}

	reservationRepo := repository.NewReservationRepository(sqlDB)
	stationRepo := repository.NewStationRepository(sqlDB)
	ownerRepo := repository.NewOwnerRepository(sqlDB)

	if path := strings.TrimSpace(cfg.SeedFile); path != "" {
		seed, err := LoadSeed(path)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := applySeed(ctx, seed, stationRepo, ownerRepo); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("seed applied", zap.Int("stations", len(seed.Stations)), zap.Int("owners", len(seed.Owners)))
	}

	var locker booking.SlotLocker = booking.NewKeyedMutex()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = client
		locker = redisstore.NewSlotLock(client, redisstore.SlotLockConfig{
			TTL:  cfg.Redis.LockTTL,
			Wait: cfg.Redis.LockWait,
		}, logger)
		logger.Info("using redis slot lock", zap.String("addr", addr))
	} else {
		logger.Info("using in-process slot lock")
	}

	deps := service.Deps{
		Reservations: reservationRepo,
		Stations:     stationRepo,
		Owners:       ownerRepo,
		Locker:       locker,
		Policy: booking.Policy{
			CreationWindow: cfg.Policy.CreationWindow,
			ChangeCutoff:   cfg.Policy.ChangeCutoff,
		},
		Claims: claim.NewCodec(cfg.ClaimSecret(), cfg.Claims.TTL),
	}
	if url := strings.TrimSpace(cfg.RabbitMQ.URL); url != "" {
		publisher, err := mq.NewPublisher(url, cfg.RabbitMQ.Exchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = publisher
		deps.Events = publisher
		logger.Info("publishing reservation events", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	ownerService := service.NewOwnerService(deps, logger.Named("owner"))
	operatorService := service.NewOperatorService(deps, logger.Named("operator"))

	validator := handlers.NewRequestValidator()
	checks := []handlers.HealthCheck{{Name: "postgres", Check: sqlDB.PingContext}}
	if a.redisClient != nil {
		client := a.redisClient
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}

	routes := httpserver.Routes{
		Owner:    handlers.NewOwnerHandlers(ownerService, validator, logger),
		Operator: handlers.NewOperatorHandlers(operatorService, validator, logger),
		Health:   handlers.NewHealthHandler(checks...),
		Auth:     middleware.Authenticate(cfg.Auth.JWTSecret),
	}
	router := httpserver.NewRouter(routes, logger)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)
	return a, nil
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq publisher", zap.Error(err))
		}
	}
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
