package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	curation "github.com/FrenchMajesty/cluster-curation"
	"github.com/FrenchMajesty/cluster-curation/internal/config"
	"github.com/FrenchMajesty/cluster-curation/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "curate",
		Short:         "Replay manual cluster curation sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.curate/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(newReplayCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a curation script and print one JSON line per step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.Resolve(config.ResolveOptions{
				ConfigPath:  root.configPath,
				CLIStrategy: strategy,
				CLILogLevel: root.logLevel,
			})
			if err != nil {
				return err
			}
			level, err := resolved.SlogLevel()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			return runReplay(cmd, args[0], resolved, logger)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "wizard strategy: best_quality or none")
	return cmd
}

func runReplay(cmd *cobra.Command, path string, resolved config.ResolvedConfig, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	script, err := ParseScript(f)
	if err != nil {
		return err
	}

	logger.Info("replaying script",
		"path", path,
		"steps", len(script.Steps),
		"strategy", resolved.Strategy.Value,
		"strategy_source", resolved.Strategy.Source)

	reg := prometheus.NewRegistry()
	session, err := curation.NewSession(script.SpikeClusters, curation.Config{
		GroupField: resolved.GroupField.Value,
		Strategy:   resolved.Strategy.Value,
		Quality:    script.qualityFunc(),
		Similarity: script.similarityFunc(),
		Metadata:   script.Metadata,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := script.Run(session, cmd.OutOrStdout()); err != nil {
		return err
	}

	snapshot, err := telemetry.Snapshot(reg)
	if err != nil {
		return err
	}
	m := session.GetMetrics()
	logger.Info("replay complete",
		"clusters", m.NClusters,
		"labeled", m.NLabeled,
		"undo_depth", m.UndoDepth,
		"redo_depth", m.RedoDepth,
		"metrics", snapshot)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "curate", version)
		},
	}
}
