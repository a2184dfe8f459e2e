package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"MHIRebal/internal/domain/models"

	"github.com/spf13/cobra"
)

var adviseCmd = &cobra.Command{
	Use:   "advise RISK_A RISK_B RISK_C",
	Short: "Decide against the latest week for the given holdings",
	Long: `Holdings are fractions of the portfolio. Whatever is left over is cash.

Example:
  mhi advise 0.40 0.40 0.10`,
	Args: cobra.ExactArgs(3),
	RunE: runAdvise,
}

func init() { rootCmd.AddCommand(adviseCmd) }

func runAdvise(cmd *cobra.Command, args []string) error {
	var h [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("holding %d: %w", i+1, err)
		}
		h[i] = v
	}
	current, err := models.FromHoldings(h[0], h[1], h[2])
	if err != nil {
		return err
	}

	svc, cleanup, err := services()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()
	d, err := svc.Advisor.Advise(ctx, current)
	if errors.Is(err, models.ErrInsufficientHistory) && d != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no decision: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	if outFormat == "json" {
		return printJSON(cmd.OutOrStdout(), d)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "week\t%s\n", d.Date.Format("2006-01-02"))
	fmt.Fprintf(w, "signal\t%+.3f\n", d.Signal)
	fmt.Fprintf(w, "bucket\t%s (%s)\n", d.Bucket, d.Status)
	fmt.Fprintf(w, "recent\t%v\n", d.Recent)
	fmt.Fprintf(w, "tilted\t%t\n\n", d.Tilted)
	fmt.Fprintln(w, "sleeve\tcurrent\ttarget\tdelta")
	for _, a := range models.Assets {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%+.4f\n", a, d.Current.Get(a), d.Target.Get(a), d.Delta.Get(a))
	}
	if !d.Actionable() {
		fmt.Fprintln(w, "\nno trade")
	}
	return w.Flush()
}
