package main

import (
	"errors"
	"fmt"

	"MHIRebal/internal/di"
	"MHIRebal/internal/domain/models"
	"MHIRebal/internal/repository"
	applogger "MHIRebal/pkg/logger"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import WEEKLY_CSV",
	Short: "Load a weekly CSV into the ClickHouse table",
	Long: `Creates the weekly table if needed and writes every price, sector and macro
value from the CSV in long format. Re-importing a week replaces its values.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() { rootCmd.AddCommand(importCmd) }

func runImport(cmd *cobra.Command, args []string) error {
	c := *cfg
	c.Data.Source = "clickhouse"
	c.ClickHouse.InitSchema = true

	l, err := di.ProvideLogger(&c)
	if err != nil {
		return err
	}
	client, cleanup, err := di.ProvideClickHouseClient(&c, l)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	src := repository.NewCSVFeed(args[0], l)
	frame, err := src.LoadWeekly(ctx, c.StartDate())
	if err != nil {
		return err
	}
	macro, err := src.LoadMacro(ctx, c.StartDate())
	if err != nil && !errors.Is(err, models.ErrFeedUnavailable) {
		return err
	}
	if err != nil {
		l.Warn("csv has no macro columns", applogger.Error(err))
	}

	n, err := di.ProvideFeeds(&c, client, l).Store.Store(ctx, frame, macro)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d values for %d weeks into %s\n", n, frame.Len(), c.Data.Table)
	return nil
}
