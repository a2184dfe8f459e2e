package main

import (
	"context"
	"encoding/json"
	"fmt"

	pkgkafka "MHIRebal/pkg/kafka"

	"github.com/spf13/cobra"
)

var (
	watchGroup     string
	watchFromStart bool
	watchTopics    []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail published decisions and rebalance events",
	Long: `Follows the Kafka topics the advisor and backtester publish to and prints one
line per message. Requires kafka.brokers.

Example:
  mhi watch --from-start --topics mhi.rebalances`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	f := watchCmd.Flags()
	f.StringVar(&watchGroup, "group", "mhi-watch", "consumer group id")
	f.BoolVar(&watchFromStart, "from-start", false, "start a new group at the earliest offset")
	f.StringSliceVar(&watchTopics, "topics", nil, "topics to follow (default: decisions and rebalances)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is not configured")
	}
	topics := watchTopics
	if len(topics) == 0 {
		topics = []string{cfg.Kafka.Topics.Decisions, cfg.Kafka.Topics.Rebalances}
	}
	c, err := pkgkafka.NewConsumer(topics,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithGroupID(watchGroup),
		pkgkafka.WithFromStart(watchFromStart),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	return c.Run(ctx, func(_ context.Context, m pkgkafka.Received) error {
		if outFormat == "json" {
			var v any = string(m.Value)
			if json.Valid(m.Value) {
				v = json.RawMessage(m.Value)
			}
			return printJSON(out, map[string]any{
				"topic": m.Topic, "key": m.Key, "offset": m.Offset,
				"time": m.Time, "headers": m.Headers, "value": v,
			})
		}
		_, err := fmt.Fprintf(out, "%s  %-16s %-12s %s\n", m.Time.Format("2006-01-02 15:04:05"), m.Topic, m.Key, m.Value)
		return err
	})
}
