package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/config"
	"github.com/Digital-Creators-Team/prize-wheel-module/db/postgres"
	"github.com/Digital-Creators-Team/prize-wheel-module/db/redis"
	"github.com/Digital-Creators-Team/prize-wheel-module/events/kafka"
	"github.com/Digital-Creators-Team/prize-wheel-module/logging"
	"github.com/Digital-Creators-Team/prize-wheel-module/provider"
	"github.com/Digital-Creators-Team/prize-wheel-module/server"
	"github.com/Digital-Creators-Team/prize-wheel-module/storage/cached"
	"github.com/Digital-Creators-Team/prize-wheel-module/storage/memory"
	pgstore "github.com/Digital-Creators-Team/prize-wheel-module/storage/postgres"
	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// @title           Prize Wheel API
// @version         1.0
// @description     Promotional reward wheel service with budget pacing

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "wheelmodule",
		Short: "Prize wheel service",
		Long:  "Runs the promotional prize wheel: weighted reward selection, budget pacing, and the live budget feed.",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/config-development.yaml", "Path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configFile)
		},
	}

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging)

	// Segment table: static for the campaign lifetime
	table, err := loadSegments(cfg, logger)
	if err != nil {
		return err
	}

	policy := wheel.DefaultPolicy()
	policy.SpinWindow = cfg.Wheel.SpinWindow
	policy.RewardWindow = cfg.Wheel.RewardWindow

	app := server.New(server.Options{Config: cfg, Logger: logger})

	// Storage backend
	stores, tx, err := buildStores(cfg, logger, app)
	if err != nil {
		return err
	}

	// Campaign config cache, invalidated by admin events from Kafka
	cachedCampaigns := cached.NewCampaignStore(stores.Campaigns, 30*time.Second)
	stores.Campaigns = cachedCampaigns

	// Per-user spin lock
	locker, err := buildLocker(cfg, logger, app)
	if err != nil {
		return err
	}

	// Commit strategy
	var committer wheel.CommitStrategy
	switch cfg.Wheel.CommitStrategy {
	case "best_effort":
		committer = wheel.NewBestEffortCommit(stores, policy, logger)
		logger.Warn().Msg("Using best-effort commit, only safe for single-instance deployments")
	default:
		committer = wheel.NewTransactionalCommit(tx, stores, policy, logger)
	}

	// Wallet integration
	wallet := provider.NewWalletProvider(cfg, logger)
	app.SetWalletProvider(wallet)

	// Kafka: spin event stream out, campaign admin events in
	kafkaProducer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	publisher := kafka.NewSpinStreamPublisher(kafkaProducer, topicFor(cfg, "spin_events", "wheel-spin-events"))
	app.SetSpinPublisher(publisher)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         topicFor(cfg, "campaign_events", "wheel-campaign-events"),
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			Logger:        logger,
		}, cachedCampaigns)
		if err := consumer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start campaign event consumer")
		}
		app.OnShutdown(func() {
			_ = consumer.Stop()
		})
	}

	spinService := server.NewWheelSpinService(server.WheelSpinServiceConfig{
		Stores:    stores,
		Table:     table,
		Policy:    policy,
		Committer: committer,
		Locker:    locker,
		Wallet:    wallet,
		Publisher: publisher,
		Feed:      app.GetFeedService(),
		Logger:    logger,
	})
	app.RegisterSpinService(spinService)

	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterWheelRoutes()
	app.RegisterSwagger(server.SwaggerInfo{
		Title:       "Prize Wheel API",
		Description: "Reward wheel service API documentation",
		Version:     "1.0",
		BasePath:    "/api",
	}, nil)

	app.OnShutdown(func() {
		if kafkaProducer != nil {
			kafkaProducer.Close()
		}
	})

	logger.Info().Int("port", cfg.Server.Port).Msg("Starting prize wheel service")
	return app.Run()
}

func loadSegments(cfg *config.Config, logger zerolog.Logger) (*wheel.SegmentTable, error) {
	if cfg.Wheel.SegmentsFile == "" {
		logger.Info().Msg("No segments file configured, using built-in wheel layout")
		return wheel.DefaultTable(), nil
	}
	table, err := wheel.LoadSegmentTable(cfg.Wheel.SegmentsFile)
	if err != nil {
		return nil, fmt.Errorf("load segment table: %w", err)
	}
	logger.Info().
		Str("file", cfg.Wheel.SegmentsFile).
		Int("segments", table.Len()).
		Msg("Segment table loaded")
	return table, nil
}

// buildStores selects the storage backend. Memory mode seeds a demo
// campaign so a fresh checkout can spin without Postgres.
func buildStores(cfg *config.Config, logger zerolog.Logger, app *server.App) (wheel.Stores, wheel.TxProvider, error) {
	if cfg.Wheel.StoreMode == "memory" {
		logger.Warn().Msg("Using in-memory store, state is lost on restart")
		store := memory.NewStore()
		seedDemoCampaign(store)
		return store.Stores(), store, nil
	}

	db, err := postgres.Connect(cfg.Postgres, logger)
	if err != nil {
		return wheel.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	app.OnShutdown(func() {
		postgres.Close(db, logger)
	})
	store := pgstore.NewStore(db)
	return store.Stores(), store.Provider(), nil
}

func buildLocker(cfg *config.Config, logger zerolog.Logger, app *server.App) (wheel.Locker, error) {
	if cfg.Wheel.LockMode != "redis" {
		return wheel.NewLocalLocker(), nil
	}
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	app.OnShutdown(func() {
		_ = redisClient.Close()
	})
	return provider.NewRedisLocker(redisClient, cfg.Wheel.LockLease, logger), nil
}

func seedDemoCampaign(store *memory.Store) {
	now := time.Now()
	campaignID := uuid.NewString()
	store.SeedCampaign(
		wheel.Campaign{
			ID:        campaignID,
			Name:      "Demo Campaign",
			Status:    wheel.CampaignLive,
			StartsAt:  now,
			EndsAt:    now.Add(30 * 24 * time.Hour),
			CreatedAt: now,
		},
		wheel.FairnessRules{
			CampaignID:                    campaignID,
			SpinsPerDay:                   1,
			FreeSpinCannotTriggerFreeSpin: true,
		},
		wheel.BudgetLedger{
			CampaignID:  campaignID,
			TotalBudget: decimal.NewFromInt(5000),
			TargetSpins: 2000,
			Mode:        wheel.PacingAuto,
			UpdatedAt:   now,
		},
	)
}

func topicFor(cfg *config.Config, key, fallback string) string {
	if cfg.Kafka.Topics != nil {
		if t, ok := cfg.Kafka.Topics[key]; ok {
			return t
		}
	}
	return fallback
}
