package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-chat/internal/api/http"
	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/api/ws"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/persistence"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/repository"
	"github.com/spec-kit/support-chat/internal/repository/memory"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/storage"
	"github.com/spec-kit/support-chat/internal/worker"
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

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.App, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis, err := persistence.OpenSharedRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	var (
		chatRepo  repository.ChatRepository
		directory repository.UserDirectory
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		chatRepo = repository.NewChatRepository(pool)
		directory = repository.NewCachedUserDirectory(repository.NewUserDirectory(pool), redis.Client, cfg.Directory.CacheTTL(), logger)
	} else {
		chatRepo = memory.NewChatStore()
		directory = memory.NewDirectory(devParticipants()...)
	}

	messageLog, closeMessageLog, err := messagelog.Open(ctx, cfg.MessageLog, redis.Client, logger)
	if err != nil {
		logger.Fatal("failed to open message log", zap.Error(err))
	}
	defer closeMessageLog(context.Background()) //nolint:errcheck

	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	attachments := service.NewAttachmentService(objects, cfg.Storage, metrics, logger)
	replicator := service.NewDualWriteCoordinator(chatRepo, messageLog, cfg.MessageLog.AppendTimeout(), metrics, logger)
	chatService := service.NewChatService(service.ChatDependencies{
		ChatRepo:    chatRepo,
		Directory:   directory,
		Policy:      auth.NewAccessPolicy(),
		Attachments: attachments,
		Replicator:  replicator,
		MessageLog:  messageLog,
		Dispatcher:  dispatcher,
		Limits:      cfg.Chat,
		Metrics:     metrics,
		Logger:      logger,
	})

	hub := realtime.NewHub(logger, metrics, cfg.Realtime.OutboundBuffer)
	var bus realtime.Bus
	if cfg.Realtime.BusEnabled {
		if bus, err = realtime.NewRedisBus(redis.Client, cfg.Realtime.BusChannel, logger); err != nil {
			logger.Fatal("failed to init realtime bus", zap.Error(err))
		}
	}
	fanout := realtime.NewFanout(hub, bus, logger)
	if err := fanout.Start(ctx); err != nil {
		logger.Fatal("failed to start realtime bus", zap.Error(err))
	}
	realtime.NewRelay(fanout, chatService, logger).RegisterHandlers(dispatcher)

	notificationService := service.NewNotificationService(dispatcher, hub, logger, cfg.Notification)
	waitWorkers := worker.Start(ctx, worker.Set{
		Subscribers: []worker.Subscriber{notificationService},
		Reconciler:  replicator,
		Reconcile: worker.ReconcileOptions{
			Interval:  cfg.Worker.ReconcileInterval(),
			Grace:     cfg.Worker.ReconcileGrace(),
			BatchSize: cfg.Worker.ReconcileBatchSize,
		},
		Replication: replicator,
	}, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, directory)

	checks := []handlers.DependencyCheck{{Name: "object_store", Check: objects.Health}}
	if pg.PoolHandle() != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Check: pg.Ping})
	}
	if redis.Required() || pg.PoolHandle() != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Check: redis.Ping})
	}

	localDir := ""
	if local, ok := objects.(*storage.LocalStorage); ok {
		localDir = local.BasePath()
	}

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(2 * attachments.MaxBytes()),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:              handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Chats:               handlers.NewChatsHandler(chatService, hub, attachments.MaxBytes()),
		Realtime:            ws.NewHandler(chatService, fanout, cfg.Realtime.PingInterval(), cfg.App.RequestTimeout(), logger),
		AuthMiddleware:      authMiddleware,
		Metrics:             adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		LocalAttachmentsDir: localDir,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
	cancel()
	waitWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// devParticipants seeds the in-memory directory used when no database is configured.
func devParticipants() []domain.Participant {
	return []domain.Participant{
		{ID: "dev-user", DisplayName: "Dev User", Email: "user@example.com", Role: domain.RoleUser},
		{ID: "dev-agent", DisplayName: "Dev Agent", Email: "agent@example.com", Role: domain.RoleAgent},
		{ID: "dev-admin", DisplayName: "Dev Admin", Email: "admin@example.com", Role: domain.RoleAdmin},
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
