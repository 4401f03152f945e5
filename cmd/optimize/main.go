// Package main provides the entry point for the grid optimizer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/database"
	"github.com/yourusername/quant-grid/internal/health"
	applogger "github.com/yourusername/quant-grid/internal/logger"
	"github.com/yourusername/quant-grid/internal/metrics"
	"github.com/yourusername/quant-grid/internal/repository"
	"github.com/yourusername/quant-grid/internal/scheduler"
	"github.com/yourusername/quant-grid/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	outputPath string
	logger     *logrus.Logger
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the full outcome as JSON to this path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search trading rule parameters over historical bars",
	Long:  `Loads a bar series, sweeps the configured parameter grid through the backtest engine, and reports the ranked results.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = applogger.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full sweep and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled sweeps with health and metrics endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("optimize %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// runSweep executes the one-shot pipeline. Interrupts cancel dispatching;
// in-flight evaluations finish and the partial result is still reported.
func runSweep() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Interrupt received, finishing in-flight evaluations")
		cancel()
	}()

	repos, db := setupPersistence(ctx)
	if db != nil {
		defer db.Close()
	}

	svc := service.NewSweepService(cfg, repos, logger)

	outcome, err := svc.RunFull(ctx)
	if err != nil {
		return err
	}

	printOutcome(outcome)

	if outputPath != "" {
		if err := writeOutcome(outcome, outputPath); err != nil {
			return err
		}
		logger.WithField("path", outputPath).Info("Outcome written")
	}
	return nil
}

// setupPersistence connects storage when the persistence feature is on. A
// one-shot sweep still runs without a database; it just isn't recorded.
func setupPersistence(ctx context.Context) (*repository.Repositories, *database.DB) {
	if !cfg.Features.PersistenceEnabled {
		return nil, nil
	}

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("Database unavailable, results will not be persisted")
		return nil, nil
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize repositories, results will not be persisted")
		db.Close()
		return nil, nil
	}

	return repos, db
}

func runServer() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Info("Quant Grid optimizer starting")

	var (
		repos *repository.Repositories
		db    *database.DB
	)
	if cfg.Features.PersistenceEnabled {
		var err error
		db, err = database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		repos, err = repository.NewRepositories(db)
		if err != nil {
			return fmt.Errorf("failed to initialize repositories: %w", err)
		}
		logger.Info("Database connection established")
	}

	svc := service.NewSweepService(cfg, repos, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.WithFields(logrus.Fields{
				"port": cfg.Metrics.Port,
				"path": cfg.Metrics.Path,
			}).Info("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthCfg := health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Port:        fmt.Sprintf("%d", cfg.Health.Port),
			Logger:      logger,
			Status:      svc.Status,
		}
		// Assign only a live pool: a nil *database.DB inside the interface
		// would pass the server's nil check and panic on Ping.
		if db != nil {
			healthCfg.DB = db
		}
		healthServer = health.NewServer(healthCfg)
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	sched := scheduler.NewScheduler(svc, logger)
	if cfg.Schedule.Enabled {
		if err := sched.ScheduleSweep(cfg.Schedule.Sweep); err != nil {
			return fmt.Errorf("failed to schedule sweep: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"cron":     cfg.Schedule.Sweep,
			"next_run": sched.GetNextRun(),
		}).Info("Sweep scheduler started")
	} else {
		logger.Warn("Scheduling disabled; only the startup sweep will run")
	}

	// First sweep runs immediately; the cron owns subsequent runs.
	go func() {
		if _, err := svc.RunFull(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Startup sweep failed")
		}
	}()

	if healthServer != nil {
		healthServer.SetReady(true)
	}
	logger.Info("Quant Grid optimizer running")

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	if healthServer != nil {
		healthServer.SetReady(false)
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping scheduler")
		}
	}
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error stopping metrics server")
		}
	}
	if healthServer != nil {
		if err := healthServer.Shutdown(); err != nil {
			logger.WithError(err).Error("Error stopping health server")
		}
	}

	logger.Info("Quant Grid optimizer shut down")
	return nil
}

func printOutcome(outcome *service.SweepOutcome) {
	result := outcome.Result

	fmt.Println("\n=== Parameter Sweep Report ===")
	fmt.Printf("Sweep ID:   %s\n", result.SweepID)
	fmt.Printf("Rule:       %s\n", result.RuleName)
	fmt.Printf("Objective:  %s\n", result.Objective)
	fmt.Printf("Total Runs: %d (failed: %d, cache hits: %d)\n", result.TotalRuns, result.FailedRuns, result.CacheHits)
	fmt.Printf("Duration:   %s\n", result.Duration.Round(time.Millisecond))
	if result.Interrupted {
		fmt.Println("Interrupted: sweep stopped early, results are partial")
	}

	if result.Best == nil {
		fmt.Println("\nNo parameter set cleared the qualification thresholds.")
		return
	}

	fmt.Println("\nTop parameter sets:")
	for i, ev := range result.Qualified {
		params, _ := json.Marshal(ev.Params)
		fmt.Printf("  %d. score=%.4f win_rate=%.2f%% net_profit=%.2f trades=%d params=%s\n",
			i+1, ev.Score, ev.Report.WinRate*100, ev.Report.NetProfit, ev.Report.TradeCount, params)
	}

	best := result.Best
	fmt.Println("\nBest parameters (rank 1):")
	fmt.Printf("  Score:        %.4f\n", best.Score)
	fmt.Printf("  Win Rate:     %.2f%%\n", best.Report.WinRate*100)
	fmt.Printf("  Net Profit:   %.2f (%.2f%%)\n", best.Report.NetProfit, best.Report.NetProfitPct*100)
	fmt.Printf("  Max Drawdown: %.2f%%\n", best.Report.MaxDrawdown*100)
	fmt.Printf("  Expectancy:   %.4f\n", best.Report.Expectancy)
	fmt.Printf("  Profit Factor: %.2f\n", best.Report.ProfitFactor)
	fmt.Printf("  Sharpe:       %.2f\n", best.Report.SharpeRatio)
	fmt.Printf("  Trades:       %d\n", best.Report.TradeCount)

	if outcome.MonteCarlo != nil {
		mc := outcome.MonteCarlo
		fmt.Printf("\nMonte Carlo (%d iterations):\n", mc.Iterations)
		fmt.Printf("  Mean Return: %.2f%%\n", mc.MeanReturn*100)
		fmt.Printf("  VaR 95/99:   %.2f%% / %.2f%%\n", mc.VaR95*100, mc.VaR99*100)
		fmt.Printf("  P(profit):   %.2f%%\n", mc.ProbabilityOfProfit*100)
		fmt.Printf("  P(ruin):     %.2f%%\n", mc.ProbabilityOfRuin*100)
	}

	if outcome.WalkForward != nil {
		wf := outcome.WalkForward
		fmt.Printf("\nWalk-forward (%d windows):\n", len(wf.Windows))
		fmt.Printf("  OOS Net Profit: %.2f%%\n", wf.Aggregated.NetProfitPct*100)
		fmt.Printf("  OOS Sharpe:     %.2f\n", wf.Aggregated.SharpeRatio)
		fmt.Printf("  Consistency:    %.2f\n", wf.ConsistencyScore)
		fmt.Printf("  Overfit Score:  %.2f\n", wf.OverfitScore)
	}
}

func writeOutcome(outcome *service.SweepOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	return nil
}
