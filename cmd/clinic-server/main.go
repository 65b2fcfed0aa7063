package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shu-io/clinic/internal/config"
	"github.com/shu-io/clinic/internal/domain/inventory"
	"github.com/shu-io/clinic/internal/domain/patient"
	"github.com/shu-io/clinic/internal/platform/db"
	"github.com/shu-io/clinic/internal/platform/middleware"
	"github.com/shu-io/clinic/internal/platform/reporting"
	"github.com/shu-io/clinic/internal/platform/store"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic record-keeping API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the default medicine catalog to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			st, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			existing := map[string]inventory.Medicine{}
			found, err := st.Load(ctx, store.CollectionMedicines, &existing)
			if err != nil {
				return err
			}
			if found && !force {
				return fmt.Errorf("medicines document already exists; use --force to overwrite")
			}

			catalog := inventory.DefaultCatalog()
			if err := st.Save(ctx, store.CollectionMedicines, catalog); err != nil {
				return err
			}
			fmt.Printf("Seeded %d medicines.\n", len(catalog))
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing medicines document")
	return cmd
}

// openStore selects the snapshot backend from the configuration: Postgres
// when DATABASE_URL is set, the data directory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if !cfg.UsePostgres() {
		return store.NewFileStore(cfg.DataDir), func() {}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	st, err := store.NewPGStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Durable store
	ctx := context.Background()
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open document store")
	}
	defer cleanup()
	if cfg.UsePostgres() {
		logger.Info().Msg("snapshots stored in postgres")
	} else {
		logger.Info().Str("dir", cfg.DataDir).Msg("snapshots stored on disk")
	}

	// Services: the ledger first, then the registry that depends on it.
	ledger, err := inventory.NewService(ctx, inventory.NewSnapshotRepo(st))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load inventory ledger")
	}
	registry, err := patient.NewService(ctx, patient.NewSnapshotRepo(st), ledger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load patient registry")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// API routes
	apiV1 := e.Group("/api/v1")
	inventory.NewHandler(ledger).RegisterRoutes(apiV1)
	patient.NewHandler(registry).RegisterRoutes(apiV1)
	reporting.NewHandler(ledger, registry).RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("clinic server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
