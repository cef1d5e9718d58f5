package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"zapdesk/services/routing-api/internal/config"
	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/inbound"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/infrastructure/database"
	gatewayclient "zapdesk/services/routing-api/internal/infrastructure/gateway"
	"zapdesk/services/routing-api/internal/infrastructure/logger"
	"zapdesk/services/routing-api/internal/infrastructure/observability"
	"zapdesk/services/routing-api/internal/infrastructure/repository/conversationrepo"
	"zapdesk/services/routing-api/internal/infrastructure/repository/directoryrepo"
	"zapdesk/services/routing-api/internal/infrastructure/repository/sessionrepo"
	"zapdesk/services/routing-api/internal/interfaces/httpserver"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
	"zapdesk/services/routing-api/internal/realtime"
)

// @title Routing API
// @version 1.0
// @description Conversation routing and WhatsApp session lifecycle service
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	watchdog   *session.Watchdog
	bridge     *realtime.Bridge
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, watchdog *session.Watchdog, bridge *realtime.Bridge, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		watchdog:   watchdog,
		bridge:     bridge,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	a.watchdog.Start(ctx)
	defer a.watchdog.Stop()
	if a.bridge != nil {
		a.bridge.Start()
		defer a.bridge.Stop()
	}
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	sessionRepository := sessionrepo.NewRepository(db)
	conversationRepository := conversationrepo.NewRepository(db)
	directoryRepository := directoryrepo.NewRepository(db)

	gatewayClient := gatewayclient.NewClient(gatewayclient.Config{
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.GatewayAPIKey,
		Timeout: cfg.GatewayTimeout,
	}, log)

	hub := realtime.NewHub(cfg.ClientBufferSize, log)

	var (
		bridge    *realtime.Bridge
		publisher realtime.Publisher = hub
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse redis url")
		}
		bridge = realtime.NewBridge(hub, redis.NewClient(opts), log)
		publisher = bridge
	}

	sessionService := session.NewService(sessionRepository, gatewayClient, cfg.QRExpiry, session.WebhookDefaults{
		URL:    cfg.WebhookCallbackURL,
		Events: cfg.DefaultWebhookEvents,
	}, log)
	conversationService := conversation.NewService(conversationRepository, sessionRepository, gatewayClient, publisher, log)
	engine := assignment.NewEngine(conversationRepository, directoryRepository, publisher, log)
	processor := inbound.NewProcessor(sessionRepository, conversationRepository, engine, publisher, log)
	watchdog := session.NewWatchdog(sessionRepository, cfg.SessionSweepInterval, log)

	handlerProvider := handlers.NewProvider(sessionService, conversationService, engine, processor, hub, log)
	httpServer := httpserver.New(cfg, log, handlerProvider)
	app := NewApplication(httpServer, watchdog, bridge, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
