package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jrholliday/VeriPy/adapters/excel"
	"github.com/jrholliday/VeriPy/adapters/postgres"
	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/adapters/stats/engine"
	"github.com/jrholliday/VeriPy/app"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal"
	"github.com/jrholliday/VeriPy/internal/config"
	"github.com/jrholliday/VeriPy/internal/report"
	"github.com/jrholliday/VeriPy/ports"
)

func main() {
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "verify",
		Short: "Forecast verification against observations",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newMetricsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		kind        string
		optionsPath string
		thresholds  []float64
		metrics     []string
		seed        int64
		resamples   int
		format      string
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "run [input-file]",
		Short: "Score a forecast file against its observations",
		Long: `Run verification on a CSV or XLSX file holding paired forecast and
observation columns.

Example: verify run storms.csv --kind categorical --thresholds 0.1,10 --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			forecastKind := verify.ForecastKind(kind)
			opts, err := loadOptions(optionsPath)
			if err != nil {
				return err
			}
			if len(thresholds) > 0 {
				opts.ThresholdValues = thresholds
			}
			if len(metrics) > 0 {
				opts.Metrics = metrics
			}
			if cmd.Flags().Changed("seed") {
				opts.RandomSeed = seed
			}
			if cmd.Flags().Changed("resamples") {
				opts.BootstrapResamples = resamples
			}

			reader := excel.NewSeriesReader()
			forecast, observed, err := reader.ReadSeries(ctx, args[0], forecastKind)
			if err != nil {
				return err
			}

			repo, err := openRepository(ctx, save)
			if err != nil {
				return err
			}

			service := app.NewVerificationService(engine.New(rng.New()), repo)
			result, err := service.Run(ctx, app.RunRequest{
				Forecast: forecast,
				Observed: observed,
				Opts:     opts,
			})
			if err != nil {
				return err
			}

			return printReport(cmd, result, format)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "continuous", "forecast kind: categorical, continuous, probabilistic, ensemble")
	cmd.Flags().StringVar(&optionsPath, "options", "", "YAML run options file")
	cmd.Flags().Float64SliceVar(&thresholds, "thresholds", nil, "event thresholds, strictly increasing")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "metric names to compute (default: all for the kind)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for resampling")
	cmd.Flags().IntVar(&resamples, "resamples", 0, "bootstrap resample count (0 disables intervals)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, csv, json, markdown")
	cmd.Flags().BoolVar(&save, "save", false, "persist results to the configured database")
	return cmd
}

func newMetricsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "List the available scores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := engine.New(rng.New()).Registry()

			catalog := registry.List()
			if kind != "" {
				catalog = registry.ForKind(verify.ForecastKind(kind))
			}
			for _, m := range catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-13s %s\n", m.Name, m.Kind, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "restrict to one forecast kind")
	return cmd
}

func loadOptions(path string) (verify.Options, error) {
	if path == "" {
		return verify.DefaultOptions(), nil
	}
	return config.LoadRunOptions(path)
}

func openRepository(ctx context.Context, save bool) (ports.ScoreRepositoryPort, error) {
	if !save {
		return nil, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, err
	}
	internal.DefaultLogger.Info("persisting results to database")
	return postgres.NewScoreRepository(db), nil
}

func printReport(cmd *cobra.Command, result *app.RunReport, format string) error {
	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "table":
		fmt.Fprintf(out, "run %s (%s), %d units matched, %d dropped\n\n",
			result.RunID, result.Kind, result.Alignment.Matched, result.Alignment.Dropped())
		fmt.Fprint(out, report.Table(result.Results))
	case "csv":
		for _, row := range report.Flatten(result.Results) {
			fmt.Fprintln(out, strings.Join(row, ","))
		}
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "markdown":
		fmt.Fprint(out, report.Markdown(fmt.Sprintf("Verification Run %s", result.RunID), result.Results))
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
