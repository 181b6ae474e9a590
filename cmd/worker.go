package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	authPostgres "github.com/frahmantamala/innovation-portal/internal/auth/postgres"
	"github.com/frahmantamala/innovation-portal/internal/maintenance"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run next to the HTTP server, such as the maintenance scheduler.`,
}

var maintenanceWorkerCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Purge expired sessions and OTP codes on a schedule",
	Long:  `Run the maintenance scheduler that deletes expired sessions and one-time codes. Use --once to purge and exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startMaintenanceWorker()
	},
}

var (
	maintenanceOnce     bool
	sessionScheduleFlag string
	otpScheduleFlag     string
)

func startMaintenanceWorker() error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogging(config)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		return fmt.Errorf("failed to init gorm: %w", err)
	}

	// Rate limit buckets live in the server process, so no sweeper here.
	cleaner := maintenance.NewCleaner(authPostgres.NewRepository(gormDB), lg,
		maintenance.WithSessionSchedule(getStringFlag(sessionScheduleFlag, config.Maintenance.SessionSchedule)),
		maintenance.WithOTPSchedule(getStringFlag(otpScheduleFlag, config.Maintenance.OTPSchedule)),
	)

	if maintenanceOnce {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return cleaner.RunOnce(ctx)
	}

	if err := cleaner.Start(); err != nil {
		return err
	}
	lg.Info("maintenance worker is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down maintenance worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-cleaner.Stop().Done():
		lg.Info("maintenance worker shutdown complete")
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
	return nil
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	maintenanceWorkerCmd.Flags().BoolVar(&maintenanceOnce, "once", false, "purge once and exit")
	maintenanceWorkerCmd.Flags().StringVar(&sessionScheduleFlag, "session-schedule", "", "cron spec for session purges (overrides config)")
	maintenanceWorkerCmd.Flags().StringVar(&otpScheduleFlag, "otp-schedule", "", "cron spec for OTP purges (overrides config)")

	workerCmd.AddCommand(maintenanceWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
