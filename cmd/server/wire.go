//go:build wireinject

package main

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"zapdesk/services/routing-api/internal/config"
	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/directory"
	"zapdesk/services/routing-api/internal/domain/gateway"
	"zapdesk/services/routing-api/internal/domain/inbound"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/infrastructure/database"
	gatewayclient "zapdesk/services/routing-api/internal/infrastructure/gateway"
	"zapdesk/services/routing-api/internal/infrastructure/logger"
	"zapdesk/services/routing-api/internal/infrastructure/repository/conversationrepo"
	"zapdesk/services/routing-api/internal/infrastructure/repository/directoryrepo"
	"zapdesk/services/routing-api/internal/infrastructure/repository/sessionrepo"
	"zapdesk/services/routing-api/internal/interfaces/httpserver"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
	"zapdesk/services/routing-api/internal/realtime"
)

var repositorySet = wire.NewSet(
	sessionrepo.NewRepository,
	wire.Bind(new(session.Store), new(*sessionrepo.Repository)),
	conversationrepo.NewRepository,
	wire.Bind(new(conversation.Store), new(*conversationrepo.Repository)),
	directoryrepo.NewRepository,
	wire.Bind(new(directory.Directory), new(*directoryrepo.Repository)),
)

var domainSet = wire.NewSet(
	session.NewService,
	conversation.NewService,
	assignment.NewEngine,
	inbound.NewProcessor,
)

// BuildApplication assembles the routing API with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		newGatewayClient,
		newHub,
		newBridge,
		newPublisher,
		newWatchdog,
		newQRExpiry,
		newWebhookDefaults,
		repositorySet,
		domainSet,
		handlers.NewProvider,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newGatewayClient(cfg *config.Config, log zerolog.Logger) gateway.Client {
	return gatewayclient.NewClient(gatewayclient.Config{
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.GatewayAPIKey,
		Timeout: cfg.GatewayTimeout,
	}, log)
}

func newHub(cfg *config.Config, log zerolog.Logger) *realtime.Hub {
	return realtime.NewHub(cfg.ClientBufferSize, log)
}

// newBridge enables cross-instance fanout only when redis is configured.
func newBridge(cfg *config.Config, hub *realtime.Hub, log zerolog.Logger) (*realtime.Bridge, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return realtime.NewBridge(hub, redis.NewClient(opts), log), nil
}

func newPublisher(hub *realtime.Hub, bridge *realtime.Bridge) realtime.Publisher {
	if bridge != nil {
		return bridge
	}
	return hub
}

func newWatchdog(store session.Store, cfg *config.Config, log zerolog.Logger) *session.Watchdog {
	return session.NewWatchdog(store, cfg.SessionSweepInterval, log)
}

func newQRExpiry(cfg *config.Config) time.Duration {
	return cfg.QRExpiry
}

func newWebhookDefaults(cfg *config.Config) session.WebhookDefaults {
	return session.WebhookDefaults{
		URL:    cfg.WebhookCallbackURL,
		Events: cfg.DefaultWebhookEvents,
	}
}
