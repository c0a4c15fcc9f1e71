package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

type modelInfo struct {
	Provider string
	Models   []string
}

var knownModels = []modelInfo{
	{
		Provider: "openai",
		Models:   []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
	},
	{
		Provider: "gemini",
		Models:   []string{"gemini-2.5-flash", "gemini-2.5-pro"},
	},
	{
		Provider: "anthropic",
		Models:   []string{"claude-sonnet-4-5", "claude-haiku-4-5"},
	},
	{
		Provider: "ollama",
		Models:   []string{"llama3.3", "llama3.1", "qwen2.5-coder", "codellama"},
	},
	{
		Provider: "lmstudio",
		Models:   []string{"local-model"},
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers, models and configured aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, info := range knownModels {
			fmt.Fprintf(out, "%s:\n", info.Provider)
			for _, m := range info.Models {
				fmt.Fprintf(out, "  - %s\n", m)
			}
			fmt.Fprintln(out)
		}

		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		aliases := make([]string, 0, len(cfg.Backend.Models))
		for alias := range cfg.Backend.Models {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		fmt.Fprintln(out, "aliases:")
		for _, alias := range aliases {
			fmt.Fprintf(out, "  %s -> %s\n", alias, cfg.Backend.Models[alias])
		}
		fmt.Fprintf(out, "\nconfigured: %s %s\n", cfg.Backend.Provider, cfg.Backend.ResolvedModel())
		return nil
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials with a single request",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Backend.Provider, cfg.Backend.ResolvedModel())

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		b, err := backend.Build(ctx, cfg.Backend, backend.StackOptions{Logger: logger})
		if err != nil {
			return err
		}
		if _, err := b.Generate(ctx, backend.Request{Prompt: "Respond with exactly: ok", MaxTokens: 10}); err != nil {
			return fmt.Errorf("%s is not responding: %w", cfg.Backend.Provider, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", cfg.Backend.Provider)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	addBackendFlags(modelsDoctorCmd)
}
