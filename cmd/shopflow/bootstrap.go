package main

import (
	"context"
	"fmt"

	"shopflow/internal/config"
	"shopflow/internal/model"
	"shopflow/internal/notify"
	"shopflow/internal/processor"
	"shopflow/internal/queue"
	"shopflow/internal/repository"
	"shopflow/internal/service"
	"shopflow/pkg/constraints"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// app holds the wired infrastructure shared by serve and the one-shot
// commands.
type app struct {
	cfg         *config.Config
	db          *gorm.DB
	rdb         *redis.Client
	registry    *queue.Registry
	queueSvc    *queue.Service
	productSvc  *service.ProductService
	productRepo *repository.ProductRepository
	clientRepo  *repository.StoreClientRepository
	notifier    notify.Notifier
}

func buildApp(cfg *config.Config) (*app, error) {
	db, err := initDB(cfg.MySQL)
	if err != nil {
		return nil, err
	}

	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}

	itemRepo := repository.NewQueueItemRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	productRepo := repository.NewProductRepository(db)
	clientRepo := repository.NewStoreClientRepository(db)

	var notifier notify.Notifier
	if cfg.Discord.WebhookURL != "" {
		notifier = notify.NewDiscordWebhook(cfg.Discord.WebhookURL, nil)
	} else {
		notifier = notify.NewLogNotifier()
	}

	cache := service.NewPriceCache(rdb)

	// Explicit, ordered processor registration. The registry is immutable
	// once dispatch starts.
	registry := queue.NewRegistry()
	registry.Register(processor.NewAnnounce(productRepo, notifier))
	registry.Register(processor.NewPriceRefresh(constraints.WorkTypeNewItem, productRepo, cache))
	registry.Register(processor.NewPriceRefresh(constraints.WorkTypePriceChange, productRepo, cache))

	queueSvc := queue.NewService(db, itemRepo, trackingRepo, registry)
	productSvc := service.NewProductService(productRepo, queueSvc, cache)

	return &app{
		cfg:         cfg,
		db:          db,
		rdb:         rdb,
		registry:    registry,
		queueSvc:    queueSvc,
		productSvc:  productSvc,
		productRepo: productRepo,
		clientRepo:  clientRepo,
		notifier:    notifier,
	}, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	// Simple auto-migrate for dev convenience
	// In production, you might want to use a proper migration tool like golang-migrate
	err = db.AutoMigrate(
		&model.Product{},
		&model.QueueItem{},
		&model.ProcessorTracking{},
		&model.StoreClient{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
