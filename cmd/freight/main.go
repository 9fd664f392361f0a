package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datafreight/freight/internal/pipeline"
	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/logger"

	// Import all available connectors to register them
	_ "github.com/datafreight/freight/pkg/connector/extractors/api"
	_ "github.com/datafreight/freight/pkg/connector/extractors/csv"
	_ "github.com/datafreight/freight/pkg/connector/extractors/jsonfile"
	_ "github.com/datafreight/freight/pkg/connector/extractors/sqldb"
	_ "github.com/datafreight/freight/pkg/connector/extractors/xmlfile"
	_ "github.com/datafreight/freight/pkg/connector/loaders/csv"
	_ "github.com/datafreight/freight/pkg/connector/loaders/jsonfile"
	_ "github.com/datafreight/freight/pkg/connector/loaders/mongo"
	_ "github.com/datafreight/freight/pkg/connector/loaders/sqldb"
	_ "github.com/datafreight/freight/pkg/connector/transformers/fieldmap"
	_ "github.com/datafreight/freight/pkg/connector/transformers/filter"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "freight",
		Short: "Freight - configurable batch ETL runner",
		Long: `Freight runs batch Extract-Transform-Load jobs described by a single YAML
file. Components are wired by type name and executed in declaration order.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Freight v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available components",
		Run: func(cmd *cobra.Command, args []string) {
			var lastKind string
			for _, info := range registry.Default().List() {
				if string(info.Kind) != lastKind {
					if lastKind != "" {
						fmt.Println()
					}
					fmt.Printf("%ss:\n", info.Kind)
					lastKind = string(info.Kind)
				}
				fmt.Printf("  - %-12s %s\n", info.Type, info.Description)
			}
		},
	})

	validateCmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a pipeline configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if problems := cfg.Validate(); len(problems) > 0 {
				for _, problem := range problems {
					fmt.Fprintf(os.Stderr, "  - %v\n", problem)
				}
				return fmt.Errorf("configuration has %d problem(s)", len(problems))
			}
			fmt.Println("configuration is valid")
			return nil
		},
	}
	root.AddCommand(validateCmd)

	var timeout time.Duration
	var logLevel string

	runCmd := &cobra.Command{
		Use:   "run <config-file>",
		Short: "Run a pipeline job",
		Long: `Run the pipeline described by the given YAML configuration file.

Example:
  freight run pipelines/orders.yaml --timeout 15m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Exit codes carry the outcome, so suppress cobra's own echo.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return runJob(args[0], timeout, logLevel)
		},
	}
	runCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Job timeout")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runJob loads the configuration, executes the pipeline and prints the final
// metrics record as JSON on stdout. Any counted error makes the process exit
// non-zero so schedulers notice degraded runs.
func runJob(configFile string, timeout time.Duration, logLevel string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.Init(logger.Config{Level: level, Encoding: cfg.Logging.Encoding}); err != nil {
		return fmt.Errorf("logger setup error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get().With(zap.String("component", "freight-cli"))
	log.Info("loaded configuration",
		zap.String("config", configFile),
		zap.Int("extractors", len(cfg.Extractors)),
		zap.Int("transformers", len(cfg.Transformers)),
		zap.Int("loaders", len(cfg.Loaders)))

	orchestrator := pipeline.New(cfg, nil, nil)
	if err := orchestrator.Setup(); err != nil {
		printMetrics(orchestrator.Metrics())
		return fmt.Errorf("pipeline setup failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	metrics, runErr := orchestrator.Run(ctx)
	printMetrics(metrics)

	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}
	if metrics.Errors > 0 {
		return fmt.Errorf("pipeline finished with %d error(s), status %s", metrics.Errors, metrics.Status)
	}
	return nil
}

func printMetrics(m pipeline.Metrics) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode metrics: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
