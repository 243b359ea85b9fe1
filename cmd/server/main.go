package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Fi44er/community_payments/db"
	"github.com/Fi44er/community_payments/internal/api"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "community-payments",
		Short:         "Payment reconciliation and notification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "path to the env config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(retryDueCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and live notification stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			if err := db.Migrate(a.db, a.cfg.DBAutoMigrate, a.logger); err != nil {
				return err
			}

			if !strings.EqualFold(a.cfg.LogLevel, "debug") {
				gin.SetMode(gin.ReleaseMode)
			}
			server := api.NewServer(&a.cfg, a.service, a.dispatcher, a.hub, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Run()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return <-errCh
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			return db.Migrate(a.db, true, a.logger)
		},
	}
}

func retryDueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "retry-due",
		Short: "Retry recurring payment failures whose next retry date has passed",
		Long: `Retry recurring payment failures whose next retry date has passed.

The service never schedules retries itself. Run this command from cron or
another scheduler, for example once an hour.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.cfg.RetryBatchSize
			}

			summary, err := a.service.RetryDueFailures(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("attempted=%d recovered=%d failed=%d\n", summary.Attempted, summary.Recovered, summary.Failed)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum failures to retry (defaults to RETRY_BATCH_SIZE)")
	return cmd
}

func cleanupCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup-notifications",
		Short: "Delete read notifications older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}

			deleted, err := a.dispatcher.CleanupRead(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			a.logger.Infof("Deleted %d read notifications", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", notify.CleanupAge, "delete read notifications older than this")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID uint
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a user (development and support use)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if userID == 0 {
				return fmt.Errorf("--user-id is required")
			}

			tok, err := api.GenerateToken(cfg.JWTSecret, userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
