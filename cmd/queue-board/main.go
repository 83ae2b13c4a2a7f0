package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/hospital-queue-scheduling/internal/logging"
)

type options struct {
	apiURL     string
	department string
	interval   time.Duration
	once       bool
	logLevel   string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "queue-board",
		Short: "Display a department's live walk-in queue",
		Long: "Polls the department queue endpoint and prints the waiting, called and serving columns.\n" +
			"Without --interval the board refreshes at the pace the server advertises.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New("dev", opts.logLevel, "queue-board")
			return run(cmd.Context(), opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api", envOr("QUEUE_BOARD_API_URL", "http://localhost:8080"), "base URL of the api-server")
	cmd.Flags().StringVarP(&opts.department, "department", "d", "", "department ID to display")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "poll interval, overrides the server's refresh_after_seconds")
	cmd.Flags().BoolVar(&opts.once, "once", false, "print the board once and exit")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level")
	_ = cmd.MarkFlagRequired("department")

	return cmd
}

func run(parent context.Context, opts options, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	rootCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &BoardClient{
		BaseURL: opts.apiURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}

	interval := opts.interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	// Run once at startup
	interval = pollOnce(rootCtx, client, opts, interval, logger)
	if opts.once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping queue board")
			return nil
		case <-ticker.C:
			next := pollOnce(rootCtx, client, opts, interval, logger)
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// pollOnce fetches and prints the board, returning the interval to wait
// before the next poll. A failed poll keeps the previous pace.
func pollOnce(ctx context.Context, client *BoardClient, opts options, current time.Duration, logger zerolog.Logger) time.Duration {
	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	board, err := client.Fetch(pollCtx, opts.department)
	if err != nil {
		logger.Error().Err(err).Str("department_id", opts.department).Msg("queue board poll failed")
		return current
	}

	fmt.Fprintf(os.Stdout, "\n%s  department %s\n", time.Now().Format("15:04:05"), opts.department)
	if err := Render(os.Stdout, board); err != nil {
		logger.Error().Err(err).Msg("render queue board")
	}

	if opts.interval <= 0 && board.RefreshAfterSeconds > 0 {
		return time.Duration(board.RefreshAfterSeconds) * time.Second
	}
	return current
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
