package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/reqx/packages/bench"
	"github.com/abdul-hamid-achik/reqx/packages/core/config"
	"github.com/abdul-hamid-achik/reqx/packages/core/vars"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

var benchCmd = &cobra.Command{
	Use:   "bench <url|file.yaml>",
	Short: "Benchmark an endpoint through a pool of sessions",
	Long: `Send the same request repeatedly through a pool of sessions and report
latency percentiles, throughput, status codes and errors.

The target is a URL or a YAML request file.

Examples:
  reqx bench https://api.example.com/health -n 1000 --concurrency 8
  reqx bench https://api.example.com/health --duration 30s --rate 50
  reqx bench create.yaml -d 1m --threshold "p95<200ms,errors<1%"`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

var (
	benchMethodFlag      string
	benchHeaderFlags     []string
	benchDataFlag        string
	benchRequestsFlag    int
	benchDurationFlag    time.Duration
	benchRateFlag        float64
	benchConcurrencyFlag int
	benchThresholdFlag   string
	benchJSONFlag        bool
	benchNoProgressFlag  bool
	benchSessionFlags    sessionFlags
)

func init() {
	benchCmd.Flags().StringVarP(&benchMethodFlag, "method", "X", http.MethodGet, "Request method for a URL target")
	benchCmd.Flags().StringArrayVarP(&benchHeaderFlags, "header", "H", nil, `Request header "Name: value" for a URL target (repeatable)`)
	benchCmd.Flags().StringVar(&benchDataFlag, "data", "", "Request body for a URL target, or @file")
	benchCmd.Flags().IntVarP(&benchRequestsFlag, "requests", "n", 0, "Stop after this many requests")
	benchCmd.Flags().DurationVarP(&benchDurationFlag, "duration", "d", 0, "Stop after this long (default 10s when -n is not set)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", 0, "Target requests per second (default unlimited)")
	benchCmd.Flags().IntVar(&benchConcurrencyFlag, "concurrency", getEnvInt("REQX_CONCURRENCY", 0), "Sessions in the pool (default: poolSize from config) (env: REQX_CONCURRENCY)")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", "", `Pass/fail thresholds (e.g., "p95<200ms,errors<0.1%,rps>50")`)
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Print the result as JSON")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable the live progress line")
	benchSessionFlags.register(benchCmd.Flags())
}

func isRequestFile(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// benchRequest builds the request once. Placeholders in a request file
// are expanded up front, so {{uuid()}} yields one value for the whole run.
func benchRequest(target string, log *slog.Logger) (*http.Request, error) {
	if isRequestFile(target) {
		rf, err := config.LoadRequestFile(target)
		if err != nil {
			return nil, &exitError{code: ExitParseError, err: err}
		}
		r := vars.NewResolver()
		r.SetWarnFunc(log.Warn)
		return rf.Resolve(r).Build()
	}

	flags := &requestFlags{headers: benchHeaderFlags, data: benchDataFlag}
	return flags.build(strings.ToUpper(benchMethodFlag), target)
}

func runBench(cmd *cobra.Command, args []string) error {
	thresholds, err := bench.ParseThresholds(benchThresholdFlag)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	setup, err := newSessionSetup(&benchSessionFlags)
	if err != nil {
		return err
	}
	defer setup.close()

	req, err := benchRequest(args[0], setup.log)
	if err != nil {
		return err
	}

	cfg := bench.DefaultConfig()
	cfg.Requests = benchRequestsFlag
	cfg.Rate = benchRateFlag
	cfg.Thresholds = thresholds
	switch {
	case benchDurationFlag > 0:
		cfg.Duration = benchDurationFlag
	case benchRequestsFlag > 0:
		cfg.Duration = 0
	}
	switch {
	case benchConcurrencyFlag > 0:
		cfg.Concurrency = benchConcurrencyFlag
	case setup.cfg.PoolSize > 0:
		cfg.Concurrency = setup.cfg.PoolSize
	}

	pool := setup.newPool(cfg.Concurrency)
	defer func() {
		if err := pool.Close(); err != nil {
			setup.log.Warn("closing pool", "error", err)
		}
	}()

	reporter := bench.NewReporter(
		bench.WithWriter(cmd.OutOrStdout()),
		bench.WithNoColor(setup.cfg.GetNoColor()),
		bench.WithNoProgress(benchNoProgressFlag || benchJSONFlag),
	)

	runner, err := bench.NewRunner(cfg, pool, req,
		bench.WithLogger(setup.log),
		bench.WithProgress(reporter.Progress),
	)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if !benchJSONFlag {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		reporter.Header(method, req.URL, cfg)
	}
	result, err := runner.Run(cmd.Context())
	reporter.ClearProgress()
	if result != nil {
		if benchJSONFlag {
			if jerr := reporter.JSON(result); jerr != nil {
				return jerr
			}
		} else {
			reporter.Summary(result)
		}
	}
	if err != nil {
		return err
	}

	if !result.Passed {
		return &exitError{code: ExitFailure, err: fmt.Errorf("thresholds failed")}
	}
	return nil
}
