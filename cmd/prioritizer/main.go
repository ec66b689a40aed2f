package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/app"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/config"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/gazetteer"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/logger"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/metrics"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/search"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prioritizer",
		Short:         "Aquatic barrier prioritization workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.AddCommand(newServeCmd(), newSearchCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr, gazetteerPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			if gazetteerPath != "" {
				cfg.GazetteerPath = gazetteerPath
			}

			zl := logger.Build(logger.Config{
				Level:     cfg.LogLevel,
				Console:   cfg.LogConsole,
				SampleN:   cfg.LogSampleN,
				Component: "prioritizer",
			}, os.Stdout)
			appLog := logger.NewSlog(&zl)
			appLog.Info("starting prioritizer",
				"addr", cfg.Addr,
				"version", Version,
				"ranking_api", cfg.RankingAPIURL,
				"gazetteer", cfg.GazetteerPath)

			a, err := app.New(cmd.Context(), cfg, appLog, metrics.BuildInfo{
				Version:   Version,
				Revision:  Revision,
				BuildDate: BuildDate,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					appLog.Warn("shutdown", "err", err)
				}
			}()
			if err := a.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			appLog.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	cmd.Flags().StringVar(&gazetteerPath, "gazetteer", "", "unit GeoJSON file (overrides GAZETTEER_PATH)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var layer, system, gazetteerPath string
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search summary units by name or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope search.Scope
			switch {
			case layer != "":
				l, err := model.ParseLayer(layer)
				if err != nil {
					return err
				}
				scope = search.ForLayer(l)
			case system != "":
				s, err := model.ParseSystem(system)
				if err != nil {
					return err
				}
				scope = search.ForSystem(s)
			default:
				return fmt.Errorf("one of --layer or --system is required")
			}

			if gazetteerPath == "" {
				gazetteerPath = config.FromEnv().GazetteerPath
			}
			ix, err := gazetteer.Load(gazetteerPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LAYER\tID\tNAME")
			for _, u := range search.Search(ix, args[0], scope) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Layer, u.ID, u.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer to search ("+layerNames()+")")
	cmd.Flags().StringVar(&system, "system", "", "search every layer of a system (ADM, HUC, ECO)")
	cmd.Flags().StringVar(&gazetteerPath, "gazetteer", "", "unit GeoJSON file (defaults to GAZETTEER_PATH)")
	return cmd
}

func layerNames() string {
	names := make([]string, len(model.Layers))
	for i, l := range model.Layers {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}
