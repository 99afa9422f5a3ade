package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/stream-access/internal/api/http"
	"github.com/spec-kit/stream-access/internal/api/http/handlers"
	"github.com/spec-kit/stream-access/internal/auth"
	"github.com/spec-kit/stream-access/internal/cache"
	"github.com/spec-kit/stream-access/internal/config"
	"github.com/spec-kit/stream-access/internal/events"
	"github.com/spec-kit/stream-access/internal/observability"
	"github.com/spec-kit/stream-access/internal/persistence"
	"github.com/spec-kit/stream-access/internal/repository"
	"github.com/spec-kit/stream-access/internal/repository/memory"
	"github.com/spec-kit/stream-access/internal/service"
	"github.com/spec-kit/stream-access/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	// Redis is the coordination tier shared by all replicas. Without it the
	// service still runs correctly as a single replica on its local tier.
	redisAvailable := redis.Ping(ctx) == nil

	var revocations auth.RevocationStore
	var sharedTier *cache.RedisTier
	if redisAvailable {
		revocations = auth.NewRedisRevocationStore(redis.Client, cfg.Auth.SessionTTL())
		sharedTier = cache.NewRedisTier(redis.Client, logger)
	} else {
		logger.Warn("redis unreachable; using in-process cache and revocation only")
		revocations = auth.NewMemoryRevocationStore()
	}

	localTier := cache.NewLocalTier(nil)
	var shared cache.SharedTier
	if sharedTier != nil {
		shared = sharedTier
	}
	coordinator := cache.NewCoordinator(localTier, shared, cache.Options{
		RetryBackoff:  cfg.Cache.RetryBackoff(),
		FetchClaimTTL: cfg.Cache.FetchClaimTTL(),
		FollowerPoll:  cfg.Cache.FollowerPoll(),
		FloorTTL:      cfg.Cache.VersionFloorTTL(),
	}, logger, metrics)
	if sharedTier != nil {
		sharedTier.SubscribeInvalidations(ctx, coordinator.HandleInvalidation)
	}
	coordinator.StartJanitor(ctx, cfg.Cache.JanitorInterval())

	var entitlementRepo repository.EntitlementRepository
	var contentRepo repository.ContentRepository
	if pool := pg.PoolHandle(); pool != nil {
		entitlementRepo = repository.NewEntitlementRepository(pool)
		contentRepo = repository.NewContentRepository(pool)
	} else {
		logger.Warn("no postgres pool; using in-memory stores")
		entitlementRepo = memory.NewEntitlementStore()
		contentRepo = memory.NewContentStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartInvalidationWorker(dispatcher, coordinator, logger)

	tokenCodec := auth.NewTokenCodec(cfg.Auth, revocations, logger)
	accessService := service.NewAccessService(cfg.Cache, service.AccessDependencies{
		Tokens:          tokenCodec,
		Cache:           coordinator,
		EntitlementRepo: entitlementRepo,
		ContentRepo:     contentRepo,
	}, logger, metrics)
	entitlementService := service.NewEntitlementService(entitlementRepo, dispatcher, logger)
	catalogService := service.NewCatalogService(contentRepo, dispatcher, logger)

	ingestKeyHash := cfg.Ingest.KeyHash
	if ingestKeyHash == "" {
		logger.Warn("INGEST_KEY_HASH not set; hashing INGEST_KEY at startup")
		ingestKeyHash, err = auth.HashIngestKey(cfg.Ingest.Key, cfg.Ingest.BcryptCost)
		if err != nil {
			logger.Fatal("failed to hash ingest key", zap.Error(err))
		}
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:       handlers.NewMetricsHandler(metrics),
		Access:        handlers.NewAccessHandler(accessService),
		Sessions:      handlers.NewSessionsHandler(tokenCodec),
		Ingest:        handlers.NewIngestHandler(entitlementService, catalogService),
		IngestKeyHash: ingestKeyHash,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
