package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/config"
	"github.com/noah-isme/lostfound-go-api/internal/database"
	"github.com/noah-isme/lostfound-go-api/internal/dto"
	"github.com/noah-isme/lostfound-go-api/internal/handler"
	"github.com/noah-isme/lostfound-go-api/internal/middleware"
	"github.com/noah-isme/lostfound-go-api/internal/realtime"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
	"github.com/noah-isme/lostfound-go-api/internal/router"
	"github.com/noah-isme/lostfound-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatBroker := realtime.NewBroker[dto.ChatMessageResponse]("chat", redisClient, cfg.RealtimeChannel, natsConn, logger)
	notificationBroker := realtime.NewBroker[dto.NotificationResponse]("notifications", redisClient, cfg.RealtimeChannel, natsConn, logger)
	chatBroker.Start(ctx)
	notificationBroker.Start(ctx)

	validate := validator.New(validator.WithRequiredStructEnabled())

	reportRepo := repository.NewReportRepository(db)
	threadRepo := repository.NewChatThreadRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, notificationBroker, validate, logger)
	matchService := service.NewMatchService(reportRepo, notificationService, logger)
	reportService := service.NewReportService(reportRepo, matchService, validate, logger)
	chatService := service.NewChatService(chatRepo, threadRepo, chatBroker, redisClient, cfg.RealtimeChannel, validate, logger)
	threadService := service.NewChatThreadService(threadRepo, reportRepo, chatService, logger)
	storageService := service.NewStorageService(reportRepo, chatRepo, threadRepo, notificationRepo, logger)

	matchService.Start(ctx, cfg.MatchSweepInterval)

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReportHandler:       handler.NewReportHandler(reportService, threadService, logger, middleware.RateLimit("reports.submit", cfg.SubmitRateLimit, time.Minute)),
		ChatHandler:         handler.NewChatHandler(chatService, threadService, logger, cfg.ChatReconcileInterval),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		StorageHandler:      handler.NewStorageHandler(storageService, logger),
		HealthProbes:        probes,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("lost & found api started")

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
