package configuration

import (
	"Chatline/internal/auth"
	"Chatline/internal/db"
	"Chatline/internal/handler"
	"Chatline/internal/hub"
	"Chatline/internal/model"
	"Chatline/internal/repo"
	"Chatline/internal/service"
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 10 * time.Second
)

type Container struct {
	MessageHandler handler.MessageHandler
	MonitorHandler handler.MonitorHandler
	Verifier       *auth.TokenVerifier
	Gate           *auth.Gate
	Hub            *hub.Hub
	Metrics        *prometheus.Registry
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := config.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	logger.Info("config loaded",
		zap.String("path", configPath),
		zap.String("database", config.Mongo.Database),
		zap.Int("app_port", config.Server.AppPort),
		zap.Int("socket_port", config.Server.SocketPort),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	con, err := db.OpenConnection(ctx, config.Mongo.Uri, config.Mongo.Database, config.Mongo.MaxPoolSize)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	userRepo := repo.NewUserRepository(db.NewRepository[model.User](con, config.Mongo.UsersCollection), logger)

	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("failed to ensure message indexes", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	verifier := auth.NewTokenVerifier(config.Auth.JWTSecret)
	gate := auth.NewGate(verifier, userRepo, logger)

	h := hub.NewHub(config.HubOptions(), gate, userRepo, messageRepo, hub.NewMetrics(registry), logger)

	messageService := service.NewMessageService(messageRepo, userRepo, logger)

	return &Container{
		MessageHandler: handler.NewMessageHandler(messageService),
		MonitorHandler: handler.NewMonitorHandler(hub.NewMonitorService(h)),
		Verifier:       verifier,
		Gate:           gate,
		Hub:            h,
		Metrics:        registry,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	return nil
}
