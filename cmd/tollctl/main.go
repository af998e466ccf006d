package main

import (
	"fmt"
	"os"
	"toll-payment/internal/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	root := &cobra.Command{
		Use:           "tollctl",
		Short:         "Toll payment client: verify plates, follow payments, query the gate",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api", cfg.APIBaseURL, "Toll API base URL")

	root.AddCommand(verifyCmd(cfg))
	root.AddCommand(statusCmd())
	root.AddCommand(pollCmd(cfg))
	root.AddCommand(gateCmd())
	root.AddCommand(anomaliesCmd(cfg))
	return root
}

func apiClient(cmd *cobra.Command) *client {
	base, _ := cmd.Flags().GetString("api")
	return newClient(base)
}
