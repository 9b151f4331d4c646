package main

import (
	"context"
	"errors"
	"fmt"
	"net"
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

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/health"
	"messenger-service/internal/logger"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/services"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	database, err := db.Connect(ctx, cfg.DBDSN, log)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	observability.SetPublisher(publisher)
	log.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)), zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, "audit."+serviceName, serviceName, cfg.Env, log)

	var mirror presence.Mirror = presence.NopMirror{}
	checks := map[string]health.Check{
		"postgres": func(ctx context.Context) error { return database.PingContext(ctx) },
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		redisMirror := presence.NewRedisMirror(rdb, "messenger")
		mirror = redisMirror
		checks["redis"] = func(ctx context.Context) error {
			_, err := redisMirror.OnlineCount(ctx)
			return err
		}
	} else {
		log.Info("redis disabled, presence is process-local")
	}

	userRepo := repositories.NewUserRepo(database)
	friendRepo := repositories.NewFriendRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := presence.NewRegistry(userRepo, mirror, cfg.PresenceTTL, log)
	hub := ws.NewHub(registry, log)

	userService := services.NewUserService(userRepo, friendRepo, hub, registry, log)
	friendService := services.NewFriendService(friendRepo, userRepo, hub, registry, log)
	conversationService := services.NewConversationService(conversationRepo, userRepo, hub, registry, log)
	messageService := services.NewMessageService(conversationRepo, messageRepo, hub, log)
	readTracker := services.NewReadTracker(conversationRepo, messageRepo, hub, log)
	typing := services.NewTypingNotifier(hub)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	google := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.APIURL+"/api/auth/google/callback")

	dispatcher := ws.NewDispatcher(messageService, readTracker, typing, conversationService, friendService, log)
	wsHandler := ws.NewHandler(tokens, userRepo, conversationRepo, friendRepo, registry, hub, dispatcher, ws.Options{
		AllowedOrigins:  cfg.WSAllowedOrigins,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
	}, log)

	authHandler := handlers.NewAuthHandler(google, tokens, userRepo, userService, audit, cfg.ClientURL, !cfg.Development(), log)
	userHandler := handlers.NewUserHandler(userService, audit, log)
	conversationHandler := handlers.NewConversationHandler(conversationService, messageService, readTracker, log)
	messageHandler := handlers.NewMessageHandler(messageService, log)
	friendHandler := handlers.NewFriendHandler(friendService, log)

	healthServer := health.NewServer(checks, log)

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterHealthRoutes(router, healthServer, registry)
	router.GET("/ws", wsHandler.Handle)

	api := router.Group("/api")
	api.GET("/auth/google", authHandler.GoogleLogin)
	api.GET("/auth/google/callback", authHandler.GoogleCallback)
	api.POST("/auth/google-callback", authHandler.GoogleIDTokenLogin)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens, userRepo))
	handlers.RegisterDebugRoutes(protected, audit, cfg.DebugRoutes)

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/logout", authHandler.Logout)

	protected.GET("/users/search", userHandler.Search)
	protected.GET("/users/profile", userHandler.Profile)
	protected.PUT("/users/profile", userHandler.UpdateProfile)
	protected.GET("/users/status/:userId", userHandler.Status)
	protected.POST("/users/:userId/block", userHandler.Block)
	protected.DELETE("/users/:userId/block", userHandler.Unblock)

	protected.GET("/conversations", conversationHandler.List)
	protected.POST("/conversations", conversationHandler.Create)
	protected.GET("/conversations/:conversationId", conversationHandler.Get)
	protected.PUT("/conversations/:conversationId", conversationHandler.Update)
	protected.GET("/conversations/:conversationId/messages", conversationHandler.Messages)
	protected.POST("/conversations/:conversationId/messages", conversationHandler.PostMessage)
	protected.POST("/conversations/:conversationId/read", conversationHandler.MarkRead)
	protected.POST("/conversations/:conversationId/participants", conversationHandler.AddParticipants)
	protected.DELETE("/conversations/:conversationId/participants/:userId", conversationHandler.RemoveParticipant)

	protected.DELETE("/messages/:messageId", messageHandler.Delete)
	protected.PUT("/messages/:messageId", messageHandler.Edit)
	protected.POST("/messages/:messageId/reactions", messageHandler.React)
	protected.DELETE("/messages/:messageId/reactions", messageHandler.Unreact)

	protected.GET("/friends", friendHandler.List)
	protected.GET("/friends/requests", friendHandler.Requests)
	protected.POST("/friends/requests", friendHandler.SendRequest)
	protected.PUT("/friends/requests/:requestId", friendHandler.Respond)
	protected.DELETE("/friends/:friendId", friendHandler.Remove)

	go registry.RunMirrorRefresh(ctx, cfg.PresenceTTL/2)
	go healthServer.RunProbes(ctx, 15*time.Second)

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		log.Fatal("failed to listen for grpc health", zap.Error(err))
	}
	go func() {
		if err := healthServer.Serve(grpcLis); err != nil {
			log.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("grpc_health_addr", grpcLis.Addr().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		log.Error("websocket shutdown incomplete", zap.Error(err))
	}
	healthServer.Stop()
	if err := publisher.Close(); err != nil {
		log.Warn("publisher close failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}
}
