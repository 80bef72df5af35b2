package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "linkrank",
	Short: "Rank pages of a link graph with PageRank",
	Long: `linkrank estimates PageRank for a corpus of linked pages two ways: by
sampling a random surfer and by iterating the rank equation to a fixed point.

A corpus is either a directory of .html files, whose <a href> links form the
graph, or an edge-list file with one "from to" pair per line.`,
	SilenceUsage: true,
}

// initErr holds a config file or .env error found during initialization;
// it is reported when a command loads its configuration.
var initErr error

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .linkrank.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading LINKRANK_* variables")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		initErr = err
		return
	}
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	initErr = config.Init(cfgFile)
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"damping":        "damping",
	"samples":        "samples",
	"threshold":      "threshold",
	"max-iterations": "max_iterations",
	"workers":        "workers",
	"seed":           "seed",
	"method":         "method",
	"format":         "format",
	"telemetry":      "telemetry",
	"verbose":        "verbose",
	"db":             "store.path",
	"http-addr":      "serve.http_addr",
	"grpc-addr":      "serve.grpc_addr",
	"amqp-url":       "queue.url",
	"job-queue":      "queue.job_queue",
	"result-queue":   "queue.result_queue",
	"prefetch":       "queue.prefetch",

	"limit-samples":    "limits.max_samples",
	"limit-iterations": "limits.max_iterations",
	"limit-body":       "limits.max_body",
}

// loadConfig binds the running command's flags into viper and loads the
// validated configuration. Flags win over file and environment only when
// set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if initErr != nil {
		return config.Config{}, initErr
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = viper.BindPFlag(key, f)
	})
	if bindErr != nil {
		return config.Config{}, fmt.Errorf("config: bind flags: %w", bindErr)
	}
	return config.Load()
}

// addLimitFlags registers the bounds on remotely submitted jobs.
func addLimitFlags(fs *pflag.FlagSet) {
	fs.Int("limit-samples", 10_000_000, "reject jobs asking for more samples; 0 disables the bound")
	fs.Int("limit-iterations", 100_000, "reject jobs allowing more iterations; 0 disables the bound")
}

// addRankFlags registers the ranking parameters shared by several commands.
func addRankFlags(fs *pflag.FlagSet, method string) {
	fs.Float64("damping", 0.85, "probability of following a link, in (0, 1)")
	fs.Int("samples", 10000, "number of random-surfer visits to tabulate")
	fs.Float64("threshold", 0.001, "iteration stops once no rank changes by more than this")
	fs.Int("max-iterations", 1000, "iteration cap; 0 disables it")
	fs.Int("workers", 1, "goroutines computing each iteration pass")
	fs.Uint64("seed", 0, "random seed for sampling; 0 seeds from the clock")
	fs.String("method", method, "ranking method: sample, iterate, both or canonical")
}

// newLogger returns the logrus logger used by long-running commands.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// setupSignalContext returns a context canceled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
