package main

import (
	"fmt"
	"os"
	"time"
	"toll-payment/internal/config"
	"toll-payment/internal/logging"
	"toll-payment/internal/ocr"
	"toll-payment/internal/poller"

	"github.com/spf13/cobra"
)

func verifyCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [plate]",
		Short: "Look a vehicle up and push the toll charge to its owner's phone",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			image, _ := cmd.Flags().GetString("image")
			follow, _ := cmd.Flags().GetBool("poll")

			var plate string
			switch {
			case len(args) == 1:
				plate = args[0]
			case image != "":
				lpr, _ := cmd.Flags().GetString("lpr")
				f, err := os.Open(image)
				if err != nil {
					return err
				}
				defer f.Close()
				plate, err = ocr.NewClient(lpr, ocr.DefaultTimeout).ExtractPlate(ctx, image, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Detected plate: %s\n", plate)
			default:
				return fmt.Errorf("license plate or --image is required")
			}

			res, err := apiClient(cmd).verify(ctx, plate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Registered {
				fmt.Fprintf(out, "%s: %s\n", plate, res.Message)
				return nil
			}
			fmt.Fprintf(out, "Transaction: %s\n", res.TransactionID)
			if res.Vehicle != nil {
				fmt.Fprintf(out, "  Owner:     %s\n", res.Vehicle.Owner)
				fmt.Fprintf(out, "  Contact:   %s\n", res.Vehicle.Contact)
			}
			fmt.Fprintln(out, "Please check your phone to complete the M-Pesa payment.")
			if follow {
				return runPoll(cmd, cfg, res.TransactionID)
			}
			return nil
		},
	}
	cmd.Flags().String("image", "", "Read the plate from an image through the OCR service")
	cmd.Flags().String("lpr", cfg.LPRAPIURL, "OCR service base URL")
	cmd.Flags().Bool("poll", false, "Follow the transaction until it completes")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Show the current state of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("api")
			status, err := poller.NewHTTPFetcher(base, 10*time.Second).Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func pollCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "poll [transaction-id]",
		Short: "Poll a transaction until it is terminal or times out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, cfg, args[0])
		},
	}
}

func runPoll(cmd *cobra.Command, cfg *config.Config, id string) error {
	base, _ := cmd.Flags().GetString("api")
	out := cmd.OutOrStdout()
	p := poller.New(
		poller.NewHTTPFetcher(base, 10*time.Second),
		poller.Config{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		poller.WithLogger(logging.NewWithWriter(cmd.ErrOrStderr(), "warn")),
		poller.WithObserver(func(r poller.Result) {
			fmt.Fprintf(out, "[%d] %s\n", r.Attempts, r.State)
		}),
	)

	res := p.Poll(cmd.Context(), id)
	switch res.State {
	case poller.StateSuccess:
		fmt.Fprintf(out, "Payment successful! Receipt: %s\n", res.Last.ReceiptReference)
	case poller.StateFailed:
		fmt.Fprintln(out, "Payment failed or was cancelled. Please try again.")
	case poller.StateTimeout:
		fmt.Fprintln(out, "Transaction timed out. Please try again or check your M-Pesa messages.")
	case poller.StateError:
		return fmt.Errorf("error checking payment status: %w", res.Err)
	}
	return nil
}

func gateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Ask for a gate decision, consuming a fresh payment if there is one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := apiClient(cmd).gate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), decision)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, s poller.Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transaction: %s\n", s.TransactionID)
	fmt.Fprintf(out, "  Status:    %s\n", s.Status)
	if s.ReceiptReference != "" {
		fmt.Fprintf(out, "  Receipt:   %s\n", s.ReceiptReference)
	}
	fmt.Fprintf(out, "  Updated:   %s\n", s.UpdatedAt.Format(time.RFC3339))
}
