package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"MHIRebal/internal/di"
	"MHIRebal/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	outFormat  string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mhi",
	Short: "Market-health rebalancing advisor",
	Long: `mhi classifies the weekly market-health composite into LOW / NEUTRAL / HIGH
buckets and turns confirmed extremes into four-sleeve rebalancing advice.

  mhi serve                     HTTP API, metrics and the weekly scheduled decision
  mhi advise 0.4 0.4 0.1        decision for the given RISK_A RISK_B RISK_C holdings
  mhi backtest --low -1.5       one historical simulation with benchmarks
  mhi sweep --lows -2,-1.5      threshold grid ranked by Sharpe and total return
  mhi import weekly.csv         load a weekly CSV into ClickHouse
  mhi watch                     tail published decisions and rebalance events`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadWithEnv(configPath)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path (empty for defaults and env only)")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "table", "output format: table or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// services wires the use cases for a one-shot command.
func services() (*di.Services, func(), error) {
	return di.InitializeServices(cfg)
}

// interruptible cancels on SIGINT/SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
