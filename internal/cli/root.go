package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/logging"
	"github.com/griffinclark/Dan-at-Dawn/internal/prompts"
	"github.com/griffinclark/Dan-at-Dawn/internal/snippets"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitIncomplete   = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage error")

var (
	flagConfigPath string
	flagVerbose    bool
	flagLogFormat  string
)

// logger is built by the root command before any subcommand runs.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "dawn",
	Short: "Principle-scored compliance reports for source code",
	Long: "Dawn evaluates code snippets against engineering principles with an LLM backend " +
		"and composes the results into a Markdown compliance report.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagConfigPath != "" {
			// ConfigPath honors DAWN_CONFIG for every later load.
			if err := os.Setenv("DAWN_CONFIG", flagConfigPath); err != nil {
				return err
			}
		}
		cfg, err := config.LoadFile()
		if err != nil {
			return err
		}
		level, format := cfg.Log.Level, flagLogFormat
		if level == "" {
			level = "info"
		}
		if format == "" {
			format = cfg.Log.Format
		}
		if flagVerbose {
			level = "debug"
		}
		l, err := logging.New(level, format)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitSuccess
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeFor(err)
	}
	return exitCode
}

// exitCode is set by command handlers that succeed with a caveat.
var exitCode = ExitSuccess

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrConfiguration),
		errors.Is(err, prompts.ErrMalformed),
		errors.Is(err, prompts.ErrMissingPlaceholder),
		errors.Is(err, prompts.ErrUnknownTemplate),
		errors.Is(err, snippets.ErrNoSnippets),
		errors.Is(err, analysis.ErrNoSnippets),
		errors.Is(err, analysis.ErrNoPrinciples),
		errors.Is(err, analysis.ErrInvalidPrinciple),
		errors.Is(err, analysis.ErrDuplicatePrinciple):
		return ExitUsageError
	case backend.IsAuthError(err):
		return ExitAuthError
	default:
		return ExitRuntimeError
	}
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print dawn version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dawn version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/dawn/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (console, json)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
