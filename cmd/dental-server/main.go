package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/commands"
	"github.com/greenapple/dental/internal/config"
	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/domain/documents"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/scheduling"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/blobstore"
	"github.com/greenapple/dental/internal/platform/db"
	"github.com/greenapple/dental/internal/platform/metrics"
	"github.com/greenapple/dental/internal/platform/middleware"
	"github.com/greenapple/dental/internal/schema"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dental-server",
		Short:        "Dental clinic record server",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(attachmentsCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local command server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")
			return withDB(cmd.Context(), func(ctx context.Context, gdb *gorm.DB, _ *config.Config) error {
				migrator := db.NewMigrator(gdb, schema.Migrations())
				var (
					count int
					err   error
				)
				if target > 0 {
					count, err = migrator.UpTo(ctx, target)
				} else {
					count, err = migrator.Up(ctx)
				}
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, gdb *gorm.DB, _ *config.Config) error {
				statuses, err := db.NewMigrator(gdb, schema.Migrations()).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func attachmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Inspect stored attachment files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <storage_key>",
		Short: "Print the absolute path of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p, err := fileStore(cfg).Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	})
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	return logger
}

func fileStore(cfg *config.Config) *blobstore.DiskStore {
	return blobstore.NewOSDiskStore(cfg.AttachmentsRoot, cfg.AttachmentsLegacyRoots...)
}

func openDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	gdb, err := db.Open(ctx, db.Options{
		Driver:   cfg.DBDriver,
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Logger:   logger.With().Str("component", "gorm").Logger(),
	})
	if err != nil {
		return nil, err
	}
	if err := db.WaitReady(ctx, gdb, cfg.DBReadyTimeout); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return gdb, nil
}

// withDB loads the config, opens the database and runs fn against it.
func withDB(ctx context.Context, fn func(ctx context.Context, gdb *gorm.DB, cfg *config.Config) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	gdb, err := openDB(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	return fn(ctx, gdb, cfg)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid config")
		return err
	}

	ctx := context.Background()
	gdb, err := openDB(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer db.Close(gdb)
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	applied, err := db.NewMigrator(gdb, schema.Migrations()).Up(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("migrations failed")
		return err
	}
	if applied > 0 {
		logger.Info().Int("count", applied).Msg("applied migrations")
	}

	svc := commands.New(gdb, fileStore(cfg), commands.Options{
		CatalogCacheTTL: cfg.CatalogCacheTTL,
		Logger:          logger,
	})

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if m, err = metrics.New(reg); err != nil {
			return err
		}
	}

	e := newServer(cfg, gdb, svc, m, logger)

	go func() {
		addr := "127.0.0.1:" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the Echo instance with middleware and every route. m may
// be nil when metrics are disabled.
func newServer(cfg *config.Config, gdb *gorm.DB, svc *commands.Services, m *metrics.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	if m != nil {
		e.Use(m.Middleware())
		e.GET("/metrics", m.Handler())
	}
	e.Use(middleware.BodyLimit("2M", "101M"))

	e.GET("/health", db.HealthHandler(gdb))
	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"version": version})
	})

	api := e.Group("/api/v1")
	patient.NewHandler(svc.Patients).RegisterRoutes(api)
	visit.NewHandler(svc.Visits).RegisterRoutes(api)
	attachment.NewHandler(svc.Attachments).RegisterRoutes(api)
	catalog.NewHandler(svc.Catalog).RegisterRoutes(api)
	documents.NewHandler(svc.Documents).RegisterRoutes(api)
	scheduling.NewHandler(svc.Appointments).RegisterRoutes(api)
	if svc.Files != nil {
		blobstore.NewFileHandler(svc.Files).RegisterRoutes(api)
	}
	return e
}
