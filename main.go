package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/chat"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/config"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/db"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/handlers"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/middleware"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/presence"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/rabbitmq"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/repositories"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/telemetry"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))
	if reason := rabbitmq.PublisherNoopReason(publisher); reason != "" {
		log.Printf("audit publishing degraded: %s", reason)
	}

	if mirror, err := observability.NewEventMirror(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetEventMirror(mirror)
		defer mirror.Close()
	} else {
		log.Printf("ws event mirroring disabled: %v", err)
	}

	auditor := telemetry.NewAuditEmitter(publisher, "audit.chat", observability.ServiceName, cfg.Environment)

	sessionRepo := repositories.NewSessionRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)

	hub := ws.NewHub()
	registry := presence.NewRegistry(presenceRepo, hub)
	chatService := chat.NewService(sessionRepo, messageRepo, hub)

	sweeper := presence.NewSweeper(registry, presenceRepo, cfg.SweepInterval, cfg.OfflineThreshold)
	go sweeper.Run(ctx)

	validator := middleware.NewTokenValidator(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(chatService, auditor)
	presenceHandler := handlers.NewPresenceHandler(registry, presenceRepo)
	socketHandler := ws.NewSocketHandler(hub, registry, chatService, presenceRepo, validator)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(observability.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	router.GET("/chats", authMiddleware, chatHandler.ListSessions)
	router.POST("/chats/start", authMiddleware, chatHandler.StartSession)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.SendMessage)
	router.PATCH("/chats/:chat_id/archive", authMiddleware, chatHandler.SetArchived)
	router.DELETE("/chats/:chat_id/me", authMiddleware, chatHandler.DeleteForMe)

	router.GET("/presence/online-count", authMiddleware, presenceHandler.OnlineCount)
	router.GET("/presence/:user_id", authMiddleware, presenceHandler.GetStatus)
	router.POST("/presence/status", authMiddleware, presenceHandler.BatchStatus)
	router.POST("/presence/heartbeat", authMiddleware, presenceHandler.Heartbeat)

	router.GET("/ws", socketHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditor, registry, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
