package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/delivery"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/notification"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	var store cache.Store
	redisStore, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Printf("redis unavailable, using in-memory cache: %v", err)
		store = cache.NewMemory()
	} else {
		store = redisStore
	}
	defer store.Close()

	transport := rabbitmq.NewTransport(cfg.AMQPURL, cfg.MaxDeliveryTries)
	defer transport.Close()
	log.Printf("queue transport: %s", rabbitmq.TransportMode(transport))

	if cfg.AMQPURL != "" {
		publisher, err := observability.NewAMQPEventPublisher(cfg.AMQPURL, cfg.EventExchange)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	userRepo := repositories.NewUserRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	preferenceRepo := repositories.NewPreferenceRepo(database)

	hub := ws.NewHub()
	var registry ws.Registry = hub
	if cfg.PresenceBackend == "redis" {
		if redisStore != nil {
			redisRegistry := ws.NewRedisRegistry(hub, redisStore.Client())
			go redisRegistry.Run(ctx)
			registry = redisRegistry
		} else {
			log.Printf("presence backend redis requested but redis is down, staying in-memory")
		}
	}

	engine := delivery.NewEngine(chatRepo, messageRepo, groupRepo, registry, transport, cfg.UnreadSkipSender)

	fanout := delivery.NewFanoutConsumer(chatRepo, messageRepo, registry)
	if err := fanout.Start(transport); err != nil {
		log.Fatalf("failed to start fanout consumer: %v", err)
	}

	notificationService := notification.NewService(notificationRepo, preferenceRepo, transport, store, cfg.PreferenceCacheTTL)

	channelHandlers := map[models.NotificationChannel]notification.ChannelHandler{
		models.ChannelInApp: notification.NewInAppChannel(registry),
	}
	if cfg.FirebaseCredentialsPath != "" || cfg.FirebaseCredentialsJSON != "" {
		push, err := notification.NewPushChannel(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseCredentialsJSON)
		if err != nil {
			log.Printf("push channel disabled: %v", err)
		} else {
			channelHandlers[models.ChannelPush] = push
		}
	}
	if cfg.SendGridAPIKey != "" {
		channelHandlers[models.ChannelEmail] = notification.NewEmailChannel(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
	}
	if cfg.TwilioAccountSID != "" {
		channelHandlers[models.ChannelSMS] = notification.NewSMSChannel(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}

	dispatcher := notification.NewDispatcher(notificationRepo, notificationService, channelHandlers, cfg.ProviderTimeout)
	if err := dispatcher.Start(transport); err != nil {
		log.Fatalf("failed to start dispatch consumers: %v", err)
	}

	scheduler := notification.NewScheduler(notificationRepo, transport, cfg.BatchInterval, cfg.BatchSize)
	go scheduler.Run(ctx)

	chatHandler := handlers.NewChatHandler(engine)
	groupHandler := handlers.NewGroupHandler(engine)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	userHandler := handlers.NewUserHandler(userRepo)
	healthHandler := handlers.NewHealthHandler(database, transport, store)
	wsHandler := ws.NewHandler(registry, chatRepo, userRepo, cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, cfg.DebugRoutes)

	auth := middleware.Auth(cfg.JWTSecret)

	router.POST("/chats/start", auth, chatHandler.StartChat)
	router.GET("/chats", auth, chatHandler.ListChats)
	router.GET("/chats/:chat_id/messages", auth, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", auth, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/read", auth, chatHandler.MarkChatMessagesRead)
	router.POST("/messages/:message_id/read", auth, chatHandler.MarkMessageRead)
	router.DELETE("/messages/:message_id", auth, chatHandler.DeleteMessage)

	router.POST("/groups", auth, groupHandler.CreateGroup)
	router.GET("/groups/:group_id", auth, groupHandler.GetGroup)
	router.POST("/groups/:group_id/participants", auth, groupHandler.AddParticipants)
	router.PATCH("/groups/:group_id", auth, groupHandler.UpdateSettings)
	router.POST("/groups/join/:token", auth, groupHandler.JoinViaInvite)

	router.GET("/users/:user_id/presence", auth, userHandler.GetPresence)

	router.POST("/notifications", auth, notificationHandler.Create)
	router.POST("/notifications/bulk", auth, notificationHandler.CreateBulk)
	router.GET("/notifications", auth, notificationHandler.List)
	router.POST("/notifications/:notification_id/seen", auth, notificationHandler.MarkSeen)
	router.GET("/notifications/preferences", auth, notificationHandler.GetPreferences)
	router.PATCH("/notifications/preferences", auth, notificationHandler.UpdatePreferences)

	router.GET("/ws", wsHandler.Handle)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("messaging-service listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
