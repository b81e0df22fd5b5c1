package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/events"
	"messaging-service/internal/handlers"
	"messaging-service/internal/jobs"
	"messaging-service/internal/logging"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/push"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, cfg.App.Name, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	database, err := db.Connect(cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer database.Close()

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	tokenRepo := repositories.NewTokenRepo(database)
	preferenceRepo := repositories.NewPreferenceRepo(database)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, logger)
	registry.Subscribe(func(userID int64, online bool) {
		hub.BroadcastPresence(userID, online)
	})

	var sender push.Sender = push.NoopSender{}
	if cfg.Push.Enabled {
		snsSender, err := push.NewSNSSender(ctx, cfg.Push.Region, cfg.Push.PlatformApplicationARNs, logger)
		if err != nil {
			logger.Fatal("push sender init failed", zap.Error(err))
		}
		sender = snsSender
	}

	var cooldowns notify.CooldownStore = notify.NewMemoryCooldowns()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
		})
		defer client.Close()
		cooldowns = notify.NewRedisCooldowns(client)
	}

	dispatcher := notify.NewDispatcher(notificationRepo, preferenceRepo, tokenRepo, cooldowns, hub, sender, logger)
	handleEvent := notify.EventHandler(dispatcher)

	publisher, connected := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if connected {
		consumer, err := events.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, handleEvent, logger)
		if err != nil {
			logger.Fatal("event consumer init failed", zap.Error(err))
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("amqp not configured, dispatching events in process")
		publisher = events.NewLocalPublisher(handleEvent, logger)
	}
	defer publisher.Close()

	service := messaging.NewService(conversationRepo, messageRepo, hub, publisher, logger)

	verifier := auth.NewHTTPVerifier(cfg.Auth.IntrospectionURL, cfg.Auth.ClientID, cfg.Auth.ClientSecret)
	gateway := ws.NewGateway(hub, registry, verifier, service, conversationRepo, notificationRepo, logger)

	sweeper := jobs.NewSweeper(
		notificationRepo,
		tokenRepo,
		parseDuration(cfg.Jobs.SweepInterval, time.Hour),
		parseDuration(cfg.Jobs.TokenMaxIdle, 90*24*time.Hour),
		cfg.Jobs.SweepBatchSize,
		logger,
	)
	go sweeper.Run(ctx)

	messageHandler := handlers.NewMessageHandler(conversationRepo, messageRepo, service)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, tokenRepo, preferenceRepo, dispatcher, sender)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.App.Name))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier)
	api := router.Group("/", authMiddleware)
	{
		api.GET("/conversations", messageHandler.ListConversations)
		api.GET("/conversations/:conversation_id/messages", messageHandler.ListMessages)
		api.POST("/conversations/:conversation_id/read", messageHandler.MarkConversationRead)
		api.DELETE("/conversations/:conversation_id", messageHandler.DeleteConversation)
		api.POST("/messages", messageHandler.SendMessage)
		api.DELETE("/messages/:message_id", messageHandler.DeleteMessage)

		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/read", notificationHandler.MarkRead)
		api.DELETE("/notifications/:notification_id", notificationHandler.Delete)
		api.POST("/notifications/test", notificationHandler.SendTest)
		api.POST("/push/tokens", notificationHandler.RegisterToken)
		api.DELETE("/push/tokens", notificationHandler.RemoveToken)
		api.GET("/notification-preferences", notificationHandler.GetPreferences)
		api.PUT("/notification-preferences", notificationHandler.UpdatePreferences)
	}

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.App.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
