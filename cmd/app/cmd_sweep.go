package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/usecase"

	"github.com/spf13/cobra"
)

var (
	swLows, swHighs []float64
	swParams        usecase.SweepParams
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Rank a grid of threshold pairs",
	Long: `Simulates every (low, high) pair of the grid on a worker pool. Ctrl-C stops
between cells and still prints the ranking of the cells that finished.

Example:
  mhi sweep --lows -2.25,-2,-1.75,-1.5 --highs 1.5,1.75,2 --workers 8`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	f := sweepCmd.Flags()
	f.Float64SliceVar(&swLows, "lows", []float64{-2.25, -2, -1.75, -1.5, -1.25}, "LOW thresholds")
	f.Float64SliceVar(&swHighs, "highs", []float64{1.25, 1.5, 1.75, 2, 2.25}, "HIGH thresholds")
	f.IntVar(&swParams.Workers, "workers", 0, "parallel simulations (default: sweep.workers)")
	f.IntVar(&swParams.Top, "top", 0, "rows per leaderboard (default: sweep.top)")
	f.StringVar(&swParams.CostPreset, "cost-preset", "", "standard, conservative or zero (default: configured rates)")
	f.BoolVar(&swParams.SkipMissing, "skip-missing", false, "drop weeks with missing prices instead of failing")
}

// sweepParams applies the flags and the sweep section defaults. An empty
// preset keeps the configured rates.
func sweepParams() usecase.SweepParams {
	p := swParams
	req := models.SweepRequest{Lows: swLows, Highs: swHighs}
	p.Pairs = req.Pairs()
	if p.Workers == 0 {
		p.Workers = cfg.Sweep.Workers
	}
	if p.Top == 0 {
		p.Top = cfg.Sweep.Top
	}
	return p
}

func runSweep(cmd *cobra.Command, _ []string) error {
	params := sweepParams()

	svc, cleanup, err := services()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	progress := make(chan models.SweepCell)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for range progress {
			n++
			fmt.Fprintf(os.Stderr, "\r%d/%d cells", n, len(params.Pairs))
		}
		fmt.Fprintln(os.Stderr)
	}()
	rep, err := svc.Sweeper.Run(ctx, params, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}
	if outFormat == "json" {
		return printJSON(cmd.OutOrStdout(), rep)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if rep.Cancelled {
		fmt.Fprintf(w, "cancelled after %d of %d cells\n\n", rep.Completed, rep.Total)
	}
	board := func(title string, cells []models.SweepCell) {
		fmt.Fprintf(w, "%s\n", title)
		fmt.Fprintln(w, "low\thigh\trebal\ttotal\tsharpe\tmax dd\tcost")
		for _, c := range cells {
			m := c.Metrics
			fmt.Fprintf(w, "%.2f\t%.2f\t%d\t%.2f%%\t%.2f\t%.2f%%\t%.4f\n",
				c.Pair.Low, c.Pair.High, c.Rebalances, m.TotalReturn*100, m.Sharpe, m.MaxDrawdown*100, c.TotalCost)
		}
		fmt.Fprintln(w)
	}
	board("by sharpe", rep.BySharpe)
	board("by total return", rep.ByReturn)
	fmt.Fprintln(w, "rebalances\tcells\tbest pair\tsharpe")
	for _, g := range rep.Groups {
		fmt.Fprintf(w, "%d\t%d\t%.2f / %.2f\t%.2f\n", g.Rebalances, g.Count, g.Best.Pair.Low, g.Best.Pair.High, g.Best.Metrics.Sharpe)
	}
	return w.Flush()
}
