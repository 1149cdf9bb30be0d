package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/media"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to init tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("tracer shutdown: %v", err)
			}
		}()
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	var statusCache *presence.StatusCache
	if cfg.RedisAddr != "" {
		redisClient, err := cache.Connect(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		statusCache = presence.NewStatusCache(redisClient, time.Hour)
	}

	if publisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("event publisher disabled: %v", err)
	} else {
		observability.SetPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub()
	registry := ws.NewRegistry()
	coordinator := presence.NewCoordinator(userRepo, statusCache, hub)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	wsHandler := ws.NewHandler(hub, registry, verifier, conversationRepo, messageRepo, coordinator, cfg.TypingTTL, cfg.DeliveryDelay)

	store, err := media.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		log.Fatalf("failed to init upload store: %v", err)
	}

	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo)
	messageHandler := handlers.NewMessageHandler(messageRepo, conversationRepo, hub, auditEmitter)
	uploadHandler := handlers.NewUploadHandler(store)
	presenceHandler := handlers.NewPresenceHandler(coordinator)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(cors.Default())

	authMiddleware := auth.Middleware(verifier)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.CreateGroup)
	router.GET("/conversations/:id/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/conversations/:id/messages", authMiddleware, messageHandler.SendMessage)
	router.GET("/messages/:id/edits", authMiddleware, conversationHandler.GetEditHistory)
	router.DELETE("/messages/:id", authMiddleware, messageHandler.DeleteForEveryone)
	router.DELETE("/messages/:id/me", authMiddleware, messageHandler.DeleteForMe)
	router.POST("/uploads", authMiddleware, uploadHandler.Upload)
	router.GET("/users/:id/status", authMiddleware, presenceHandler.GetStatus)
	router.Static(cfg.UploadBaseURL, cfg.UploadDir)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
