package main

import (
	"fmt"
	"text/tabwriter"

	"MHIRebal/internal/services/simulation"
	"MHIRebal/internal/usecase"

	"github.com/spf13/cobra"
)

var btParams usecase.BacktestParams
var btNoAnalysis bool

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate one threshold pair over the full history",
	Long: `Runs the weekly simulation and prints performance next to the buy-and-hold
benchmarks. Missing prices abort the run unless --skip-missing is set.

Examples:
  mhi backtest
  mhi backtest --low -1.5 --high 2 --cost-preset conservative
  mhi backtest --format json --publish`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	f := backtestCmd.Flags()
	f.Float64Var(&btParams.Low, "low", -1.75, "LOW bucket threshold")
	f.Float64Var(&btParams.High, "high", 1.75, "HIGH bucket threshold")
	f.BoolVar(&btParams.SkipMissing, "skip-missing", false, "drop weeks with missing prices instead of failing")
	f.StringVar(&btParams.CostPreset, "cost-preset", "", "standard, conservative or zero (default: configured rates)")
	f.BoolVar(&btNoAnalysis, "no-analysis", false, "skip per-rebalance impact analysis")
	f.BoolVar(&btParams.Publish, "publish", false, "publish rebalance events to Kafka")
}

// backtestParams applies the flags. An empty preset keeps the rates resolved
// from the costs section of the config.
func backtestParams() usecase.BacktestParams {
	p := btParams
	p.Analysis = !btNoAnalysis
	return p
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := services()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()
	rep, err := svc.Backtester.Run(ctx, backtestParams())
	if err != nil {
		return err
	}
	if outFormat == "json" {
		return printJSON(cmd.OutOrStdout(), rep)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "thresholds\t%.2f / %.2f\n", rep.LowThreshold, rep.HighThreshold)
	fmt.Fprintf(w, "rebalances\t%d\n", rep.Result.Rebalances)
	fmt.Fprintf(w, "total cost\t%.4f\n", rep.Result.TotalCost)
	if rep.Result.Skipped > 0 {
		fmt.Fprintf(w, "skipped weeks\t%d\n", rep.Result.Skipped)
	}
	if rep.Result.SkippedChecks > 0 {
		fmt.Fprintf(w, "checks without signal\t%d\n", rep.Result.SkippedChecks)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "strategy\ttotal\tannual\tvol\tsharpe\tmax dd")
	m := rep.Metrics
	fmt.Fprintf(w, "mhi\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\n", m.TotalReturn*100, m.AnnualReturn*100, m.AnnualVol*100, m.Sharpe, m.MaxDrawdown*100)
	for _, b := range rep.Benchmarks {
		m := b.Metrics
		fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\n", b.Name, m.TotalReturn*100, m.AnnualReturn*100, m.AnnualVol*100, m.Sharpe, m.MaxDrawdown*100)
	}
	if len(rep.Impacts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "date\tbucket\tpre\tpost\tif held\teffect")
		for _, im := range rep.Impacts {
			fmt.Fprintf(w, "%s\t%s\t%+.2f%%\t%+.2f%%\t%+.2f%%\t%+.2f%%\n", im.Date.Format("2006-01-02"), im.Bucket,
				im.PreReturn*100, im.PostReturn*100, im.Counterfactual*100, im.Effect*100)
		}
		sum := simulation.SummarizeImpacts(rep.Impacts)
		fmt.Fprintf(w, "\n%d of %d rebalances helped\ttotal effect %+.2f%%\n", sum.Positive, sum.Events, sum.TotalEffect*100)
	}
	return w.Flush()
}
