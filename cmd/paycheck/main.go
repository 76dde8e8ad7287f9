package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"exam-access/internal/client"
	"exam-access/internal/config"
	"exam-access/internal/infra/logging"
)

const exitPending = 2

// paycheck polls a payment until it settles and prints the outcome.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := command()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, client.ErrPollTimeout) {
			os.Exit(exitPending)
		}
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var (
		baseURL  string
		interval time.Duration
		attempts int
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "paycheck <payment-id>",
		Short: "Poll a payment until the processor settles it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := logging.New(config.LogConfig{Level: level, Format: "console"}, true)
			c := client.NewStatusClient(baseURL, nil, logger)

			st, err := c.Poll(cmd.Context(), args[0], interval, attempts)
			if errors.Is(err, client.ErrPollTimeout) {
				fmt.Fprintf(cmd.OutOrStdout(), "payment %s is still pending; the processor may settle it later\n", args[0])
				return err
			}
			if err != nil {
				return fmt.Errorf("poll %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "payment %s (%s): %s\n", st.ID, st.ExternalID, st.Status)
			if st.AccessCode != nil {
				fmt.Fprintf(out, "access code: %s\n", *st.AccessCode)
			}
			if st.Material != nil {
				fmt.Fprintf(out, "%s: %s\n", st.Material.Title, st.Material.DriveLink)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "service base URL")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultInterval, "time between polls")
	cmd.Flags().IntVar(&attempts, "attempts", client.DefaultMaxAttempts, "polls before giving up")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every poll")
	return cmd
}
