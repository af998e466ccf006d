package main

import (
	"context"
	"fmt"
	"io"
	"time"
	"toll-payment/internal/config"
	"toll-payment/internal/logging"
	tollredis "toll-payment/internal/redis"
	"toll-payment/internal/transactions"

	"github.com/spf13/cobra"
)

type anomalyLister interface {
	RecentAnomalies(ctx context.Context, limit int64) ([]transactions.Anomaly, error)
}

func anomaliesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List callbacks that were acknowledged but not applied cleanly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("redis")
			limit, _ := cmd.Flags().GetInt64("limit")
			if url == "" {
				return fmt.Errorf("--redis or REDIS_URL is required")
			}

			rdb, err := tollredis.NewClient(cmd.Context(), url)
			if err != nil {
				return err
			}
			defer rdb.Close()

			recorder := transactions.NewRedisAnomalyRecorder(rdb.Client, logging.NewWithWriter(cmd.ErrOrStderr(), "warn"))
			return listAnomalies(cmd.Context(), cmd.OutOrStdout(), recorder, limit)
		},
	}
	cmd.Flags().String("redis", cfg.RedisURL, "Redis URL holding the anomaly log")
	cmd.Flags().Int64("limit", 20, "Number of entries to show, newest first")
	return cmd
}

func listAnomalies(ctx context.Context, out io.Writer, lister anomalyLister, limit int64) error {
	if limit <= 0 {
		limit = 20
	}
	items, err := lister.RecentAnomalies(ctx, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "No anomalies recorded.")
		return nil
	}
	for _, a := range items {
		fmt.Fprintf(out, "%s  %-20s checkout=%s transaction=%s %s\n",
			a.At.Format(time.RFC3339), a.Kind, dash(a.CheckoutRequestID), dash(a.TransactionID), a.Detail)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
