// Command loadgen measures poolserve's /sync and /async endpoints side by
// side and prints throughput and latency percentiles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/loadgen"
	"github.com/utkarsh5026/poolserve/internal/logging"
	"github.com/utkarsh5026/poolserve/internal/report"
	"github.com/utkarsh5026/poolserve/internal/retry"
)

var (
	flagTarget      string
	flagMode        string
	flagRequests    int
	flagConcurrency int
	flagRate        float64
	flagTimeout     time.Duration
	flagQuery       string
	flagWaitReady   time.Duration
	flagPreset      string
	flagSave        string
	flagQuiet       bool
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Drive load against a poolserve instance",
	Long: `Send GET requests to /sync, /async or both and compare the results.

Without --rate the run is closed-loop: --concurrency clients each send the
next request as soon as the previous one completes. With --rate requests are
released at a fixed pace and --concurrency caps how many are outstanding.

Presets (--preset):
  smoke        100 requests, 10 clients
  saturate     5000 requests, 200 clients
  slow-io      1000 requests, 100 clients, idleDelay=200 on /sync`,
	SilenceUsage:      true,
	PersistentPreRunE: applyPreset,
	RunE:              run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagTarget, "target", "http://localhost:8080", "base URL of the server")
	f.StringVar(&flagMode, "mode", "both", "endpoint to load: sync, async or both")
	f.IntVarP(&flagRequests, "requests", "n", 1000, "requests per endpoint")
	f.IntVarP(&flagConcurrency, "concurrency", "c", 50, "concurrent clients")
	f.Float64Var(&flagRate, "rate", 0, "requests per second, 0 for closed-loop")
	f.DurationVar(&flagTimeout, "timeout", 60*time.Second, "per-request timeout")
	f.StringVar(&flagQuery, "query", "", "query string for /sync, e.g. idleDelay=200&fileLength=1024")
	f.DurationVar(&flagWaitReady, "wait-ready", 10*time.Second, "how long to wait for the server to answer, 0 to skip")
	f.StringVar(&flagPreset, "preset", "", "preset: smoke, saturate or slow-io")
	f.StringVar(&flagSave, "save", "", "write the summaries as JSON to this file")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "hide the progress bar")
	f.StringVar(&flagLogLevel, "log-level", "warn", "log level")
}

func applyPreset(cmd *cobra.Command, _ []string) error {
	if flagPreset == "" {
		return nil
	}

	set := func(name string, val any) {
		if cmd.Flags().Changed(name) {
			return
		}
		switch v := val.(type) {
		case int:
			_ = cmd.Flags().Set(name, strconv.Itoa(v))
		case string:
			_ = cmd.Flags().Set(name, v)
		}
	}

	switch flagPreset {
	case "smoke":
		set("requests", 100)
		set("concurrency", 10)
	case "saturate":
		set("requests", 5000)
		set("concurrency", 200)
	case "slow-io":
		set("requests", 1000)
		set("concurrency", 100)
		set("query", "idleDelay=200")
	default:
		return fmt.Errorf("unknown preset %q (expected smoke, saturate or slow-io)", flagPreset)
	}
	return nil
}

func paths(mode string) ([]string, error) {
	switch mode {
	case "sync":
		return []string{"/sync"}, nil
	case "async":
		return []string{"/async"}, nil
	case "both":
		return []string{"/sync", "/async"}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q (expected sync, async or both)", mode)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	targets, err := paths(flagMode)
	if err != nil {
		return err
	}

	logger, err := logging.New(flagLogLevel, logging.FormatConsole)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = report.Bold.Fprintln(out, "poolserve load generator")
	_, _ = fmt.Fprintf(out, "  target:      %s\n", flagTarget)
	_, _ = fmt.Fprintf(out, "  endpoints:   %v\n", targets)
	_, _ = fmt.Fprintf(out, "  requests:    %s per endpoint\n", report.FormatNumber(flagRequests))
	_, _ = fmt.Fprintf(out, "  concurrency: %d\n", flagConcurrency)
	if flagRate > 0 {
		_, _ = fmt.Fprintf(out, "  rate:        %.1f req/s\n", flagRate)
	}
	if flagQuery != "" {
		_, _ = fmt.Fprintf(out, "  query:       %s (sync only)\n", flagQuery)
	}

	var summaries []report.Summary
	for i, path := range targets {
		cfg := loadgen.Config{
			Target:      flagTarget,
			Path:        path,
			Requests:    flagRequests,
			Concurrency: flagConcurrency,
			Rate:        flagRate,
			Timeout:     flagTimeout,
		}
		if path == "/sync" {
			cfg.Query = flagQuery
		}

		opts := []loadgen.Option{loadgen.WithLogger(logger)}
		if !flagQuiet {
			bar := report.NewProgressBar(flagRequests, path, cmd.ErrOrStderr())
			opts = append(opts, loadgen.WithOnSample(func(report.Sample) { _ = bar.Add(1) }))
		}

		r, err := loadgen.New(cfg, opts...)
		if err != nil {
			return err
		}

		if i == 0 && flagWaitReady > 0 {
			if err := waitReady(ctx, r, logger); err != nil {
				return err
			}
		}

		sum, err := r.Run(ctx, path)
		summaries = append(summaries, sum)
		if err != nil {
			_, _ = report.Yellow.Fprintf(out, "run %s stopped early: %v\n", path, err)
			break
		}
		_, _ = report.Green.Fprintf(out, "  ✓ %s: %s requests in %s\n", path,
			report.FormatNumber(sum.Requests), sum.Elapsed.Round(time.Millisecond))
	}

	if err := report.Render(out, summaries); err != nil {
		return err
	}

	if flagSave != "" {
		if err := save(flagSave, summaries); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "\nresults saved to %s\n", flagSave)
	}
	return nil
}

func waitReady(ctx context.Context, r *loadgen.Runner, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, flagWaitReady)
	defer cancel()

	b := retry.New(retry.KindJittered, 50*time.Millisecond, time.Second, 0.2)
	if err := r.WaitReady(ctx, b, 0); err != nil {
		return fmt.Errorf("server at %s not reachable: %w", flagTarget, err)
	}
	logger.Debug("server ready", zap.String("target", flagTarget))
	return nil
}

func save(path string, summaries []report.Summary) error {
	data, err := json.MarshalIndent(struct {
		Timestamp string           `json:"timestamp"`
		Target    string           `json:"target"`
		Runs      []report.Summary `json:"runs"`
	}{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Target:    flagTarget,
		Runs:      summaries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
