package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"carte-manager/core/config"
	"carte-manager/core/database"
	"carte-manager/core/events"
	"carte-manager/core/loader"
	"carte-manager/core/logger"
	"carte-manager/core/middleware/adminauth"
	"carte-manager/core/middleware/rayid"
	"carte-manager/core/schema"
	"carte-manager/core/storage"

	"carte-manager/feature/cartes"
	"carte-manager/feature/journal"
	"carte-manager/feature/reconcile"
	"carte-manager/feature/sitesync"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the carte manager server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (mandatory: this service is the record store)
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if cfg.Database.Driver == "sqlite" {
			// MySQL installs manage the schema externally.
			if err := cartes.AutoMigrate(db); err != nil {
				logg.Fatal("Failed to migrate record tables", zap.Error(err))
			}
			if err := db.AutoMigrate(&journal.Entry{}); err != nil {
				logg.Fatal("Failed to migrate journal table", zap.Error(err))
			}
		}

		// 4. Register journaled tables and verify them against the live schema
		registry := schema.NewRegistry()
		registry.Register(cartes.Schema())
		if err := registry.Verify(db); err != nil {
			logg.Fatal("Schema verification failed", zap.Error(err))
		}

		// 5. Optional infrastructure: archive storage and event broker
		var store storage.Client
		if cfg.Storage.Enabled() {
			store, err = storage.NewClient(cfg.Storage)
			if err != nil {
				logg.Fatal("Failed to create storage client", zap.Error(err))
			}
			logg.Info("Journal archive storage enabled", zap.String("bucket", cfg.Storage.Bucket))
		}
		producer := events.NewProducer(cfg.Events)
		defer producer.Close()

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Admin key on the administrative surfaces. The sync routes carry
		// their own token middleware inside the feature.
		admin := adminauth.New(adminauth.Config{ApiKey: cfg.Server.AdminKey})
		app.Use("/import", admin)
		app.Use("/journal", admin)

		// 7. Initialize Feature Loader
		journalFeature := journal.NewFeature(db, logg, registry, producer, store, cfg.Storage.Bucket)

		mgr := loader.NewManager()
		mgr.Register(journalFeature)
		mgr.Register(reconcile.NewFeature(db, logg, journalFeature.Service()))
		mgr.Register(sitesync.NewFeature(db, logg, journalFeature.Service(), cfg.Sync, cfg.Server.JwtSecret, cfg.Server.TokenTTL()))

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
