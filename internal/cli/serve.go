package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/redact"
	"github.com/griffinclark/Dan-at-Dawn/internal/report"
	"github.com/griffinclark/Dan-at-Dawn/internal/server"
)

var (
	flagAddr        string
	flagCORSOrigins string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve report generation over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		settings, err := settingsFor(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		b, err := openBackend(ctx, cfg, backend.NewMetrics(reg))
		if err != nil {
			return err
		}

		r, err := redact.New(cfg.Privacy.RedactSecrets, cfg.Privacy.RedactPaths)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}

		opts := []report.Option{report.WithLogger(logger)}
		store := openHistory(cfg)
		if store != nil {
			defer store.Close()
			opts = append(opts, report.WithHistory(store))
		}

		srv := server.New(report.NewPipeline(b, settings, opts...), server.Options{
			Addr:           flagAddr,
			AllowedOrigins: config.SplitList(flagCORSOrigins),
			Defaults: server.Defaults{
				PromptsPath:         cfg.Prompts,
				SamplePath:          cfg.SampleReport,
				ReviewerContextPath: cfg.ReviewerContext,
				Principles:          analysis.ParsePrinciples(cfg.Principles),
			},
			Gatherer: reg,
			History:  store,
			Redactor: r,
			Logger:   logger,
		})
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&flagCORSOrigins, "cors-origins", "", "Allowed CORS origins (comma-separated)")
	addBackendFlags(serveCmd)
}
