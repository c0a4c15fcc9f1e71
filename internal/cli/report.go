package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/cache"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/history"
	"github.com/griffinclark/Dan-at-Dawn/internal/output"
	"github.com/griffinclark/Dan-at-Dawn/internal/redact"
	"github.com/griffinclark/Dan-at-Dawn/internal/report"
	"github.com/griffinclark/Dan-at-Dawn/internal/snippets"
)

// Report flags
var (
	flagSnippets        string
	flagSource          string
	flagInclude         string
	flagExclude         string
	flagMaxFiles        int
	flagSplitLarge      bool
	flagPrompts         string
	flagSample          string
	flagReviewerContext string
	flagFeedback        string
	flagSimulate        bool
	flagPrinciples      string
	flagOut             string
	flagFormat          string
	flagResultsOut      string
	flagTitle           string
	flagDraft           bool
	flagIsolate         bool
	flagNoRedact        bool
	flagCache           bool
	flagNoCache         bool
	flagProvider        string
	flagModel           string
	flagTemperature     float64
	flagConcurrency     int
)

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, gemini, anthropic, ollama, lmstudio)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name or alias")
	cmd.Flags().Float64Var(&flagTemperature, "temperature", -1, "Sampling temperature")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Maximum in-flight backend calls")
	cmd.Flags().BoolVar(&flagCache, "cache", false, "Serve repeated prompts from the response cache")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache even if the config enables it")
}

// buildOverrides maps set flags onto config keys.
func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagTemperature >= 0 {
		m["temperature"] = fmt.Sprintf("%g", flagTemperature)
	}
	if flagConcurrency > 0 {
		m["concurrency"] = fmt.Sprintf("%d", flagConcurrency)
	}
	if flagPrompts != "" {
		m["prompts"] = flagPrompts
	}
	if flagSample != "" {
		m["sampleReport"] = flagSample
	}
	if flagReviewerContext != "" {
		m["reviewerContext"] = flagReviewerContext
	}
	if flagPrinciples != "" {
		m["principles"] = flagPrinciples
	}
	if flagOut != "" {
		m["output"] = flagOut
	}
	if flagIsolate {
		m["failurePolicy"] = config.FailurePolicyIsolate
	}
	if flagCache {
		m["cache"] = "true"
	}
	return m
}

// loadSnippets reads the snippet list file or discovers snippets under the
// source tree, then applies redaction.
func loadSnippets(cfg config.Config) ([]analysis.Snippet, error) {
	var (
		snips []analysis.Snippet
		err   error
	)
	switch {
	case flagSnippets != "" && flagSource != "":
		return nil, fmt.Errorf("%w: --snippets and --source are mutually exclusive", errUsage)
	case flagSnippets != "":
		snips, err = snippets.LoadFile(flagSnippets)
	case flagSource != "":
		opts := snippets.DiscoverOptions{
			Include:    cfg.Include,
			Exclude:    cfg.Exclude,
			MaxFiles:   flagMaxFiles,
			SplitLarge: flagSplitLarge,
		}
		if flagInclude != "" {
			opts.Include = config.SplitList(flagInclude)
		}
		if flagExclude != "" {
			opts.Exclude = append(opts.Exclude, config.SplitList(flagExclude)...)
		}
		snips, err = snippets.Discover(flagSource, opts)
	default:
		return nil, fmt.Errorf("%w: one of --snippets or --source is required", errUsage)
	}
	if err != nil {
		return nil, err
	}

	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		logger.Warn("secret redaction is disabled")
	}
	r, err := redact.New(cfg.Privacy.RedactSecrets, cfg.Privacy.RedactPaths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	snips, n := snippets.Redact(snips, r)
	if n > 0 {
		logger.Info("redacted snippets", zap.Int("redactions", n))
	}
	return snips, nil
}

// openBackend builds the configured backend stack. The response cache is
// only part of it when enabled in config or with --cache.
func openBackend(ctx context.Context, cfg config.Config, metrics *backend.Metrics) (backend.Backend, error) {
	var c *cache.Cache
	if cfg.Cache.Enabled && !flagNoCache {
		var err error
		c, err = cache.New(true, cfg.Cache.Dir, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			logger.Warn("cache unavailable", zap.Error(err))
		}
	}
	return backend.Build(ctx, cfg.Backend, backend.StackOptions{Cache: c, Metrics: metrics, Logger: logger})
}

// openHistory opens the run history, or returns nil when it is disabled or
// cannot be opened.
func openHistory(cfg config.Config) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
		return nil
	}
	return store
}

func settingsFor(cfg config.Config) (report.Settings, error) {
	policy, err := analysis.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return report.Settings{}, err
	}
	return report.Settings{
		Temperature:   cfg.Backend.Temperature,
		MaxTokens:     cfg.Backend.MaxTokens,
		Concurrency:   cfg.Concurrency,
		FailurePolicy: policy,
		Model:         cfg.Backend.ResolvedModel(),
	}, nil
}

func progressLogger(ev analysis.UnitEvent) {
	fields := []zap.Field{
		zap.String("principle", string(ev.Principle)),
		zap.Int("snippet", ev.SnippetIndex),
		zap.Stringer("kind", ev.Kind),
		zap.Duration("elapsed", ev.Duration),
		zap.Int("done", ev.Done),
		zap.Int("total", ev.Total),
	}
	if ev.Err != nil {
		logger.Warn("unit failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	logger.Debug("unit done", fields...)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a compliance report",
	Long: "Evaluate snippets against each principle, compose the results into a Markdown report " +
		"and write it to a file, stdout or an object store.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		snips, err := loadSnippets(cfg)
		if err != nil {
			return err
		}
		settings, err := settingsFor(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := openBackend(ctx, cfg, nil)
		if err != nil {
			return err
		}
		sink, err := output.Open(cfg.Output, flagFormat, cfg.Storage)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}

		opts := []report.Option{report.WithLogger(logger), report.WithProgress(progressLogger)}
		if store := openHistory(cfg); store != nil {
			defer store.Close()
			opts = append(opts, report.WithHistory(store))
		}
		pipeline := report.NewPipeline(b, settings, opts...)

		rep, err := pipeline.Run(ctx, report.Input{
			Snippets:            snips,
			Principles:          analysis.ParsePrinciples(cfg.Principles),
			PromptsPath:         cfg.Prompts,
			SamplePath:          cfg.SampleReport,
			ReviewerContextPath: cfg.ReviewerContext,
			Feedback:            flagFeedback,
			SimulateFeedback:    flagSimulate,
			Draft:               flagDraft,
			Title:               flagTitle,
			Sink:                sink,
		})
		if err != nil {
			return err
		}

		if flagResultsOut != "" {
			data, err := rep.Results.MarshalIndent()
			if err != nil {
				return err
			}
			if err := output.WriteFileAtomic(flagResultsOut, []byte(data+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing results: %w", err)
			}
		}

		if n := len(rep.Results.Failures); n > 0 {
			logger.Warn("report is incomplete", zap.Int("failed_units", n))
			exitCode = ExitIncomplete
		}
		return nil
	},
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&flagSnippets, "snippets", "", "Snippet list file (JSON or YAML)")
	f.StringVar(&flagSource, "source", "", "Discover snippets under this directory")
	f.StringVar(&flagInclude, "include", "", "Include globs for --source (comma-separated)")
	f.StringVar(&flagExclude, "exclude", "", "Additional exclude globs for --source (comma-separated)")
	f.IntVar(&flagMaxFiles, "max-files", 0, "Maximum snippets discovered under --source")
	f.BoolVar(&flagSplitLarge, "split-large", false, "Split files over the size limit into chunks instead of skipping them")
	f.StringVar(&flagPrompts, "prompts", "", "Prompt catalog file")
	f.StringVar(&flagSample, "sample", "", "Sample report that shows the expected layout")
	f.StringVar(&flagReviewerContext, "reviewer-context", "", "Reviewer context for simulated feedback")
	f.StringVar(&flagFeedback, "feedback", "", "Feedback to append to the report")
	f.BoolVar(&flagSimulate, "simulate-feedback", false, "Ask the backend for reviewer feedback")
	f.StringVar(&flagPrinciples, "principles", "", "Principles to evaluate (comma-separated)")
	f.StringVar(&flagOut, "out", "", "Destination: file path, - for stdout, or s3://bucket/key")
	f.StringVar(&flagFormat, "format", "", "Output format (markdown, json, terminal)")
	f.StringVar(&flagResultsOut, "results-out", "", "Also write the analysis results JSON to this file")
	f.StringVar(&flagTitle, "title", "", "Report title")
	f.BoolVar(&flagDraft, "draft", false, "Lay out the results locally instead of asking the backend to format them")
	f.BoolVar(&flagIsolate, "isolate-failures", false, "Keep going when a unit fails and mark it in the report")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	addBackendFlags(reportCmd)
}
