package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/config"
	"Qurbani-app-backend/db"
	hauth "Qurbani-app-backend/handlers/auth"
	"Qurbani-app-backend/logger"
	"Qurbani-app-backend/models"
	"Qurbani-app-backend/storage"
)

var (
	cfg        config.Config
	migrateNow bool
	acctRole   string
	acctUser   string
	acctPass   string
)

var rootCmd = &cobra.Command{
	Use:           "qurbani",
	Short:         "Qurbani hissa collection backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if _, err := logger.New(cfg.IsProduction(), cfg.LogLevel); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  serve,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set")
		}
		pool, err := db.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		zap.L().Info("schema applied")
		return nil
	},
}

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create an admin or supervisor login, or reset its password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set")
		}
		if acctUser == "" || len(acctPass) < 6 {
			return errors.New("--username and --password (min 6 chars) are required")
		}
		pool, err := db.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		id, err := hauth.CreateStaff(cmd.Context(), pool, models.UserRole(acctRole), acctUser, acctPass)
		if err != nil {
			return err
		}
		zap.L().Info("account saved", zap.String("role", acctRole), zap.String("username", acctUser), zap.Int64("id", id))
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateNow, "migrate", false, "apply the schema before serving")
	rootCmd.Flags().BoolVar(&migrateNow, "migrate", false, "apply the schema before serving")

	createAccountCmd.Flags().StringVar(&acctRole, "role", string(models.UserRoleAdmin), "admin or supervisor")
	createAccountCmd.Flags().StringVar(&acctUser, "username", "", "login name")
	createAccountCmd.Flags().StringVar(&acctPass, "password", "", "password")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAccountCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if migrateNow {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	cch, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	if err != nil {
		// Summaries are still served from the database.
		zap.L().Warn("redis unavailable, caching disabled", zap.Error(err))
		cch = &cache.Cache{}
	}
	defer cch.Close()

	uploader, err := storage.NewCloudinary(cfg.CloudinaryURL)
	if err != nil {
		return err
	}
	if cfg.CloudinaryURL == "" {
		zap.L().Warn("CLOUDINARY_URL not set, receipt images must be hosted URLs")
	}

	app := newApp(cfg, deps{pool: pool, cache: cch, uploader: uploader})

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", cfg.Addr))
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
