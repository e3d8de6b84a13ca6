package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/api"
	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/config"
	"github.com/lalith-99/teamchat/internal/db"
	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/observ"
	"github.com/lalith-99/teamchat/internal/policy"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/repository/postgres"
	"github.com/lalith-99/teamchat/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	if err := database.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	pool := database.Pool()

	userStore := postgres.NewUserStore(pool)
	roleStore := postgres.NewRoleStore(pool)
	channelStore := postgres.NewChannelStore(pool)
	messageStore := postgres.NewMessageStore(pool)
	webhookStore := postgres.NewWebhookStore(pool)
	refreshStore := postgres.NewRefreshTokenStore(pool)

	authenticator := auth.New(cfg.JWTSecret, cfg.JWTRefreshSecret)
	checker := policy.NewChecker(roleStore, channelStore)
	registry := realtime.NewRegistry(logger)

	// With REDIS_URL set, broadcasts go through the relay so every
	// process delivers to its own connections. Without it, delivery
	// stays in-process.
	var relay *realtime.Relay
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer func() {
			_ = redisClient.Close()
		}()
		relay = realtime.NewRelay(redisClient, logger)
		logger.Info("realtime relay enabled")
	}

	broadcaster := realtime.NewBroadcaster(registry, relay, logger)
	if relay != nil {
		go relay.Run(ctx, broadcaster.DeliverLocal)
	}

	var defaultSender *uuid.UUID
	if cfg.WebhookDefaultSender != "" {
		id, err := uuid.Parse(cfg.WebhookDefaultSender)
		if err != nil {
			return fmt.Errorf("parse WEBHOOK_DEFAULT_SENDER_UUID: %w", err)
		}
		defaultSender = &id
	}

	dispatcher := service.NewDispatcher(webhookStore, logger)
	messageSvc := service.NewMessageService(
		channelStore, userStore, messageStore, webhookStore,
		checker, broadcaster, dispatcher, defaultSender, logger,
	)

	authHandler := api.NewAuthHandler(userStore, refreshStore, authenticator, logger)
	channelHandler := api.NewChannelHandler(channelStore, userStore, roleStore, checker, logger)
	messageHandler := api.NewMessageHandler(messageSvc, logger)
	roleHandler := api.NewRoleHandler(roleStore, logger)
	userHandler := api.NewUserHandler(userStore, roleStore, logger)
	webhookHandler := api.NewWebhookHandler(webhookStore, channelStore, messageSvc, logger)
	uploadHandler := api.NewUploadHandler(cfg.UploadDir, logger)
	wsHandler := realtime.NewHandler(registry, authenticator, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The websocket handshake authenticates via query token, not the
	// Authorization header, so it sits outside the middleware.
	router.GET("/ws", wsHandler.Serve)
	router.Static("/uploads/images", uploadHandler.ImagesDir())

	v1 := router.Group("/api/v1")

	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/refresh", authHandler.Refresh)
	v1.POST("/webhooks/incoming", webhookHandler.Incoming)

	protected := v1.Group("", middleware.Auth(authenticator))
	protected.GET("/channels", channelHandler.List)
	protected.POST("/channels", channelHandler.Create)
	protected.GET("/channels/:channelId/roles", channelHandler.GetRoles)
	protected.PUT("/channels/:channelId/roles", channelHandler.UpdateRoles)
	protected.DELETE("/channels/:channelId", channelHandler.Delete)

	protected.POST("/messages", messageHandler.Create)
	protected.GET("/messages/:channelId", messageHandler.List)
	protected.POST("/messages/:channelId/read", messageHandler.MarkRead)

	protected.GET("/roles", roleHandler.List)
	protected.GET("/users/:userId/roles", userHandler.GetRoles)

	protected.GET("/webhooks/:channelId", webhookHandler.List)
	protected.POST("/webhooks", webhookHandler.Create)

	protected.POST("/uploads/images", uploadHandler.UploadImage)

	admin := protected.Group("", middleware.RequireAdmin())
	admin.POST("/roles", roleHandler.Create)
	admin.GET("/users", userHandler.List)
	admin.PUT("/users/:userId/roles", userHandler.UpdateRoles)
	admin.POST("/webhooks/notify", webhookHandler.Notify)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
