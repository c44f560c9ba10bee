// ratingrisk estimates credit rating transition probabilities.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/ratingrisk/internal/config"
	"github.com/seenimoa/ratingrisk/internal/dataset"
	"github.com/seenimoa/ratingrisk/internal/infra"
	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/internal/report"
	"github.com/seenimoa/ratingrisk/internal/service"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ratingrisk",
	Short: "Credit rating transition risk from hazard models",
	Long: `ratingrisk fits one survival model per rating transition type
(upgrade, downgrade, default, withdrawal) on issuer rating histories and
turns them into horizon-specific change probabilities for individual
firms, with an out-of-time backtest of the models.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		log, err = infra.NewLogger(cfg.Logging.Logger())
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ratingrisk %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Score Command ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Train on a dataset and score its firms",
	Long: `Train hazard models on the rating history in a dataset file and
score every firm profile in it.

Examples:
  ratingrisk score --data portfolio.yaml
  ratingrisk score --data portfolio.json --horizon 365 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, format, err := loadInputs(cmd)
		if err != nil {
			return err
		}
		horizon := cfg.Scoring.HorizonDays
		if cmd.Flags().Changed("horizon") {
			horizon, _ = cmd.Flags().GetInt("horizon")
		}

		svc, err := service.New(cfg, log)
		if err != nil {
			return err
		}
		out, err := svc.Score(cmd.Context(), ds, horizon)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		return report.WriteScore(cmd.OutOrStdout(), out, format)
	},
}

func init() {
	scoreCmd.Flags().String("data", "", "dataset file (.json, .yaml)")
	scoreCmd.Flags().Int("horizon", 90, "horizon in days (default: scoring.horizon_days)")
	scoreCmd.Flags().String("format", "text", "output format: text, json, yaml")
	_ = scoreCmd.MarkFlagRequired("data")
}

// --- Backtest Command ---

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the out-of-time backtest on a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, format, err := loadInputs(cmd)
		if err != nil {
			return err
		}
		svc, err := service.New(cfg, log)
		if err != nil {
			return err
		}
		rep, err := svc.Backtest(cmd.Context(), ds)
		if err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		return report.WriteBacktest(cmd.OutOrStdout(), rep, format)
	},
}

func init() {
	backtestCmd.Flags().String("data", "", "dataset file (.json, .yaml)")
	backtestCmd.Flags().String("format", "text", "output format: text, json, yaml")
	_ = backtestCmd.MarkFlagRequired("data")
}

func loadInputs(cmd *cobra.Command) (*dataset.Dataset, report.Format, error) {
	f, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(f)
	if err != nil {
		return nil, "", err
	}
	path, _ := cmd.Flags().GetString("data")
	ds, err := dataset.Load(path)
	if err != nil {
		return nil, "", err
	}
	log.Debug().
		Str("path", path).
		Int("observations", len(ds.Observations)).
		Int("panel_rows", len(ds.Panel)).
		Int("firms", len(ds.Firms)).
		Msg("dataset loaded")
	return ds, format, nil
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and rating scale",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  ratingrisk — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Horizon:        %dd\n", cfg.Scoring.HorizonDays)
		fmt.Printf("    Probability:    [%.3f, %.2f]\n", cfg.Scoring.Floor, cfg.Scoring.Ceiling)
		fmt.Printf("    WD+NR factor:   x%.2f\n", cfg.Scoring.WDNRMultiplier)
		fmt.Printf("    Fit timeout:    %s\n", cfg.Training.FitTimeout)
		fmt.Printf("    Backtest:       %d splits\n", len(cfg.Backtest.Splits))
		fmt.Println()

		scale := rating.Standard()
		fmt.Println("  Rating scale:")
		for _, sym := range scale.Symbols() {
			sev, _ := scale.Severity(sym)
			fmt.Printf("    %-5s %2d  %s\n", sym, sev, scale.Bucket(sev))
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
