package main

import (
	"context"
	"errors"
	"log"

	"wedding-chat/config"
	"wedding-chat/internal/handler"
	"wedding-chat/internal/redis"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/server"
	"wedding-chat/internal/services"
	"wedding-chat/internal/websocket"
	"wedding-chat/pkg/database"
	"wedding-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(appLogger)
	defer appLogger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	wsLogger := websocket.NewWebSocketLogger(appLogger.Named("websocket"))
	registry := websocket.NewRegistry()
	router := websocket.NewRouter(registry, wsLogger)

	var broadcaster services.Broadcaster = router
	var limiter *redis.RateLimiter
	var wsLimiter websocket.MessageLimiter
	if redisClient != nil {
		limiter = redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: cfg.MessageRateWindow,
		})
		wsLimiter = limiter
	}
	if cfg.FanoutMode == config.FanoutRedis {
		broadcaster = redis.NewFanoutPublisher(redis.NewPublisher(redisClient), appLogger.Named("fanout"))
		bridge := websocket.NewRedisBridge(redis.NewSubscriber(redisClient), router, wsLogger)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Logger.Error("redis fanout bridge stopped", zap.Error(err))
			}
		}()
	}

	serviceLogger := appLogger.Named("services")
	reconciler := services.NewUnreadReconciler(db, broadcaster, serviceLogger)
	messageService := services.NewMessageService(db, broadcaster, serviceLogger)
	conversationService := services.NewConversationService(db, reconciler, broadcaster, serviceLogger)
	authService := services.NewAuthService(cfg.JWTSecret)

	srv := server.New(cfg, appLogger)
	srv.SetupRoutes(&server.Handlers{
		Conversations: handler.NewConversationHandler(conversationService),
		Messages:      handler.NewMessageHandler(messageService, reconciler, serviceLogger),
		WebSocket: websocket.NewHandler(
			authService,
			router,
			conversationService,
			messageService,
			reconciler,
			wsLimiter,
			wsLogger,
		),
	}, server.RouteOptions{
		Auth:     authService,
		Limiter:  limiter,
		Health:   database.HealthCheck,
		Registry: registry,
	})
	srv.OnShutdown(cancel)
	srv.OnShutdown(router.Shutdown)

	if err := srv.Start(); err != nil {
		log.Printf("Server exited with error: %v", err)
	}
}
