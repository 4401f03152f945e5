// Package main provides the entry point for the single-run backtest CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/datasource"
	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// reportPayload is the JSON document written by -output.
type reportPayload struct {
	Rule       string                     `json:"rule"`
	Params     strategy.Params            `json:"params"`
	Report     backtest.Report            `json:"report"`
	MonteCarlo *backtest.MonteCarloResult `json:"monte_carlo,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to config file")
		ruleName   = flag.String("rule", "", "Trading rule to test (defaults to optimizer.rule)")
		paramsJSON = flag.String("params", "{}", `Rule parameters as JSON, e.g. {"lookback_window":20}`)
		mode       = flag.String("mode", "historical", "Backtest mode: historical, monte-carlo, all")
		output     = flag.String("output", "", "Output path for the JSON report")
	)
	flag.Parse()

	logger := newLogger()
	ctx := context.Background()

	cfg := loadConfigWithSecrets(*configPath, logger)
	series := loadSeries(ctx, cfg, logger)
	rule := resolveRule(*ruleName, cfg, logger)
	params := parseParams(*paramsJSON, logger)

	logger.WithFields(logrus.Fields{"mode": *mode, "rule": rule.Name()}).Info("Starting backtest")
	runMode(series, rule, params, cfg, *mode, *output, logger)
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func loadConfigWithSecrets(path string, logger *logrus.Logger) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			logger.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			logger.Fatalf("Failed to load secrets: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func loadSeries(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *market.Series {
	factory := datasource.NewFactory(cfg, log.New(logger.Writer(), "", 0))
	source, err := factory.NewSource()
	if err != nil {
		logger.Fatalf("Failed to create data source: %v", err)
	}
	series, err := source.LoadSeries(ctx)
	if err != nil {
		logger.Fatalf("Failed to load series: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"source":      source.Name(),
		"bars":        series.Len(),
		"fingerprint": series.Fingerprint(),
	}).Info("Series loaded")
	return series
}

func resolveRule(name string, cfg *config.Config, logger *logrus.Logger) strategy.Rule {
	if name == "" {
		name = cfg.Optimizer.Rule
	}
	rule, err := strategy.RuleByName(name)
	if err != nil {
		logger.Fatalf("Unknown rule %q, available: %s", name, strings.Join(strategy.RuleNames(), ", "))
	}
	return rule
}

func parseParams(raw string, logger *logrus.Logger) strategy.Params {
	params := strategy.Params{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		logger.Fatalf("Invalid -params JSON: %v", err)
	}
	return params
}

func buildEngineConfig(cfg *config.Config) backtest.Config {
	return backtest.Config{
		StartingCapital: cfg.Backtest.StartingCapital,
		Execution:       backtest.ExecutionPolicy(cfg.Backtest.ExecutionPolicy),
		Sizing:          backtest.SizingMode(cfg.Backtest.SizingMode),
		FixedUnits:      cfg.Backtest.FixedUnits,
		Costs: backtest.CostModel{
			Commission:    cfg.Backtest.Commission,
			FeeRate:       cfg.Backtest.FeeRate,
			StopLossPct:   cfg.Backtest.StopLossPct,
			TakeProfitPct: cfg.Backtest.TakeProfitPct,
		},
	}
}

func runMode(series *market.Series, rule strategy.Rule, params strategy.Params, cfg *config.Config, mode string, output string, logger *logrus.Logger) {
	switch mode {
	case "historical", "monte-carlo", "all":
	default:
		logger.Fatalf("Unsupported mode: %s", mode)
	}

	report, result, err := backtest.Evaluate(series, rule, params, buildEngineConfig(cfg))
	if err != nil {
		logger.Fatalf("Backtest failed: %v", err)
	}

	payload := reportPayload{Rule: rule.Name(), Params: params, Report: report}
	if mode == "historical" || mode == "all" {
		printReport(rule.Name(), params, report)
	}
	if mode == "monte-carlo" || mode == "all" {
		payload.MonteCarlo = runMonteCarloSim(result.Trades, cfg, logger)
	}

	if output != "" {
		writeReport(output, payload, logger)
	}
}

func runMonteCarloSim(trades []backtest.Trade, cfg *config.Config, logger *logrus.Logger) *backtest.MonteCarloResult {
	mc, err := backtest.RunMonteCarlo(trades, backtest.MonteCarloConfig{
		Iterations:      cfg.Backtest.MonteCarloIterations,
		Seed:            cfg.Backtest.MonteCarloSeed,
		StartingCapital: cfg.Backtest.StartingCapital,
		RuinThreshold:   cfg.Backtest.RuinThreshold,
	})
	if err != nil {
		logger.Fatalf("Monte Carlo failed: %v", err)
	}
	printMonteCarlo(mc)
	return &mc
}

func printReport(ruleName string, params strategy.Params, report backtest.Report) {
	paramsJSON, _ := json.Marshal(params)

	fmt.Println("\n=== Backtest Report ===")
	fmt.Printf("Rule:          %s\n", ruleName)
	fmt.Printf("Params:        %s\n", paramsJSON)
	fmt.Printf("Trades:        %d (won %d, lost %d)\n", report.TradeCount, report.WinCount, report.LossCount)
	fmt.Printf("Win Rate:      %.2f%%\n", report.WinRate*100)
	fmt.Printf("Net Profit:    %.2f (%.2f%%)\n", report.NetProfit, report.NetProfitPct*100)
	fmt.Printf("Max Drawdown:  %.2f%%\n", report.MaxDrawdown*100)
	fmt.Printf("Expectancy:    %.4f\n", report.Expectancy)
	fmt.Printf("Profit Factor: %.2f\n", report.ProfitFactor)
	fmt.Printf("Sharpe:        %.2f\n", report.SharpeRatio)
	fmt.Printf("Sortino:       %.2f\n", report.SortinoRatio)
	fmt.Printf("Avg Win/Loss:  %.2f / %.2f\n", report.AvgWin, report.AvgLoss)
	fmt.Printf("Final Equity:  %.2f (from %.2f)\n", report.FinalEquity, report.StartingCapital)
}

func printMonteCarlo(mc backtest.MonteCarloResult) {
	fmt.Printf("\n=== Monte Carlo (%d iterations) ===\n", mc.Iterations)
	fmt.Printf("Mean Return:   %.2f%% (std %.2f%%)\n", mc.MeanReturn*100, mc.StdReturn*100)
	fmt.Printf("VaR 95/99:     %.2f%% / %.2f%%\n", mc.VaR95*100, mc.VaR99*100)
	fmt.Printf("P(profit):     %.2f%%\n", mc.ProbabilityOfProfit*100)
	fmt.Printf("P(ruin):       %.2f%%\n", mc.ProbabilityOfRuin*100)
	for _, band := range []string{"p05", "p25", "p50", "p75", "p95"} {
		if v, ok := mc.EquityPercentiles[band]; ok {
			fmt.Printf("Equity %s:    %.2f\n", band, v)
		}
	}
}

func writeReport(path string, payload reportPayload, logger *logrus.Logger) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to marshal report: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Fatalf("Failed to write report: %v", err)
	}
	logger.WithField("path", path).Info("Report written")
}
