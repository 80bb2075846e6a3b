package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"essence-engine/config"
	"essence-engine/handlers"
	"essence-engine/middleware"
	"essence-engine/models"
	"essence-engine/services"
	"essence-engine/utils"
	"essence-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:           "essence-engine",
		Short:         "Essence economy and progression service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), catalogCmd(), levelsCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func catalogCmd() *cobra.Command {
	catalog := &cobra.Command{Use: "catalog", Short: "Economy catalog tools"}

	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate an economy catalog file (defaults to the embedded catalog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			economy, err := config.LoadEconomy(file)
			if err != nil {
				return err
			}
			if _, _, err := services.CatalogModels(economy); err != nil {
				return err
			}
			if _, err := services.BuildCriteriaRegistry(economy.Achievements); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ catalog ok: %d sources, %d rewards, %d achievements, %d milestones\n",
				len(economy.Sources), len(economy.Rewards), len(economy.Achievements), len(economy.Milestones))
			return nil
		},
	}
	validate.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	catalog.AddCommand(validate)
	return catalog
}

func levelsCmd() *cobra.Command {
	var maxLevel int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the level threshold table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			economy, err := config.LoadEconomy(cfg.EconomyFile)
			if err != nil {
				return err
			}
			table, err := services.NewLevelTable(cfg.Leveling.Constant, economy.Levels.Titles, economy.Levels.Fallback)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for level := 1; level <= maxLevel; level++ {
				fmt.Fprintf(out, "%3d  %8d  %s\n", level, table.RequiredEssence(level), table.Title(level))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max", 12, "highest level to print")
	return cmd
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	gormCfg := &gorm.Config{TranslateError: true}

	switch strings.ToLower(cfg.DatabaseDriver) {
	case "postgres", "":
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite has no row locks; one connection serializes award transactions.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}

func serve(cfg *config.Config) error {
	if cfg.ServiceToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}

	economy, err := config.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		return fmt.Errorf("failed to load economy catalog: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Notifications: engine → queue → (log, SSE hub, webhook)
	hub := services.NewNotificationHub(32)
	dispatchers := services.MultiDispatcher{services.LogDispatcher{}, hub}
	if cfg.NotifyWebhookURL != "" {
		dispatchers = append(dispatchers, services.NewWebhookDispatcher(cfg.NotifyWebhookURL, cfg.ServiceToken))
	}
	notifications := workers.NewNotificationQueue(dispatchers, cfg.Workers.EventBuffer)
	go notifications.Run(ctx)

	engine, err := services.NewEngine(db, clock, cfg, economy, notifications)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	if err := engine.Catalog.Seed(ctx, economy); err != nil {
		return err
	}

	pipeline := workers.NewActionPipeline(engine.Essence, engine.Achievements, cfg.Workers.AwardWorkers, cfg.Workers.EventBuffer)
	pipeline.Start(ctx)

	if cfg.ActionFeedURL != "" {
		workers.NewActionFeedWorker(cfg.ActionFeedURL, cfg.ServiceToken, cfg.ActionFeedInterval, pipeline, clock).Start(ctx)
	}

	reconciler := services.NewMilestoneReconciler(engine.Essence, engine.Achievements, clock, cfg.ReconcileInterval)
	if _, err := services.StartReconcileScheduler(ctx, reconciler, cfg.ReconcileInterval); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	var store *utils.ObjectStore
	if cfg.R2.Enabled() {
		store, err = utils.NewR2Store(ctx, utils.R2Settings{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
	} else {
		log.Println("⚠️  R2 not configured, reward icon uploads disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 5 * 1024 * 1024, // 5MB
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupEssenceRoutes(app, handlers.EssenceDeps{
		Essence:      engine.Essence,
		Achievements: engine.Achievements,
		Rewards:      engine.Rewards,
		Hub:          hub,
	})
	handlers.SetupInternalRoutes(app, engine.Essence, pipeline)
	handlers.SetupAdminRoutes(app, engine.Rewards, store)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Action pipeline running (%d workers)", cfg.Workers.AwardWorkers)
	log.Printf("✅ Milestone reconciliation every %s", cfg.ReconcileInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally")
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	pipeline.Wait()
	return nil
}
