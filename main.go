package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benchtrack/benchtrack/internal/app"
	"github.com/benchtrack/benchtrack/internal/config"
	"github.com/benchtrack/benchtrack/internal/database"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "benchtrack"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Weekly project allocation and bench tracking",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/application.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	cmd.AddCommand(migrateCmd(&configPath))
	cmd.AddCommand(weekCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setupLogging(level string) error {
	if level == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	logrusLevel, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(logrusLevel)
	return nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}

func migrateCmd(configPath *string) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (or roll back with --down)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if down > 0 {
				return database.Rollback(cfg.Database, down)
			}
			return database.Migrate(cfg.Database)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "Number of migrations to roll back")
	return cmd
}

func weekCmd() *cobra.Command {
	var (
		date    string
		isoWeek string
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the corporate week for today, a date, or an ISO week",
		RunE: func(cmd *cobra.Command, args []string) error {
			week, err := resolveWeek(date, isoWeek, utils.SystemClock{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", week, week.DisplayText())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date in YYYY-MM-DD format")
	cmd.Flags().StringVar(&isoWeek, "iso-week", "", "ISO week in YYYY-Www format")
	return cmd
}

func resolveWeek(date string, isoWeek string, clock utils.Clock) (corporate_week.CorporateWeek, error) {
	switch {
	case date != "" && isoWeek != "":
		return corporate_week.CorporateWeek{}, fmt.Errorf("use either --date or --iso-week")
	case date != "":
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return corporate_week.CorporateWeek{}, fmt.Errorf("invalid date %q: %w", date, err)
		}
		return corporate_week.WeekOf(d), nil
	case isoWeek != "":
		year, week, err := corporate_week.ParseISOWeek(isoWeek)
		if err != nil {
			return corporate_week.CorporateWeek{}, err
		}
		monday, err := corporate_week.ISOWeekStart(year, week)
		if err != nil {
			return corporate_week.CorporateWeek{}, err
		}
		return corporate_week.WeekOf(monday), nil
	default:
		return corporate_week.CurrentWeekInfo(clock), nil
	}
}
