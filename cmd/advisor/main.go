package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"llm-signal-advisor/internal/extract"
	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/scheduler"
	"llm-signal-advisor/internal/staging"
	"llm-signal-advisor/internal/trace"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "advisor",
	Short:         "Turns market-history exports into one trading decision per cycle",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeSystem()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the source directory and run a cycle whenever the trigger appears",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx, configPath)
		if err != nil {
			return err
		}
		_, runner, err := initializeRunner(ctx, cfg)
		if err != nil {
			return err
		}

		opts := []scheduler.Option{}
		if cfg.Dirs.Source != "" {
			opts = append(opts, scheduler.WithWatch(cfg.Dirs.Source))
		}
		interval := time.Duration(cfg.PollSeconds) * time.Second
		logger.Info(ctx, "Advisor started", "poll_seconds", cfg.PollSeconds, "provider", cfg.LLM.Provider)
		err = scheduler.New(runner, interval, opts...).Run(ctx)
		logger.Info(ctx, "Shutting down...")
		return err
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle and print its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx, configPath)
		if err != nil {
			return err
		}
		_, runner, err := initializeRunner(ctx, cfg)
		if err != nil {
			return err
		}
		report, err := runner.RunCycle(ctx)
		if perr := printJSON(cmd, report); perr != nil {
			return perr
		}
		return err
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the JSON snippets recovered from a response file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		type out struct {
			Source string `json:"source"`
			Start  int    `json:"start"`
			End    int    `json:"end"`
			Value  any    `json:"value"`
		}
		snippets := extract.Snippets(string(b))
		res := make([]out, 0, len(snippets))
		for _, sn := range snippets {
			res = append(res, out{Source: sn.Source.String(), Start: sn.Start, End: sn.End, Value: sn.Value})
		}
		return printJSON(cmd, res)
	},
}

var decideWorkDir string

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Advance the decision queue once and publish the decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx, configPath)
		if err != nil {
			return err
		}
		runner, _, err := initializeRunner(ctx, cfg)
		if err != nil {
			return err
		}

		var state string
		if cfg.Dirs.Source != "" && staging.TriggerPresent(cfg.Dirs.Source) {
			if state, err = staging.ReadTrigger(cfg.Dirs.Source); err != nil {
				return err
			}
		}
		var sink interfaces.ResponseSink
		if decideWorkDir != "" {
			sink = staging.DirSink{Dir: decideWorkDir}
		}

		d, warning, err := runner.Decide(ctx, state, sink)
		if err != nil {
			return err
		}
		if warning != "" {
			logger.Warn(ctx, "Queue warning", "warning", warning)
		}
		return printJSON(cmd, d)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml (missing file means defaults)")
	decideCmd.Flags().StringVar(&decideWorkDir, "work-dir", "", "directory that keeps the advisory answer as traderInfo.json")
	rootCmd.AddCommand(runCmd, onceCmd, extractCmd, decideCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
