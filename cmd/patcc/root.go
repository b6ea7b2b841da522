// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool

	ranks  int
	count  int
	seed   int64
	planar bool

	cfg    Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "patcc",
		Short: "Distributed spherical and planar Delaunay triangulation",
		Long: `patcc triangulates point sets on the sphere (longitude and latitude in
degrees) or in the plane. The decompose, render and verify commands split the
domain into partitions owned by in-process ranks, grow a halo around each one
and check that neighbouring partitions agree along their boundaries.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	flags.IntVar(&a.ranks, "ranks", 0, "number of ranks (overrides the config)")
	flags.IntVarP(&a.count, "points", "n", 0, "number of random points (overrides the config)")
	flags.Int64Var(&a.seed, "seed", 0, "random seed (overrides the config)")
	flags.BoolVar(&a.planar, "planar", false, "treat coordinates as planar x and y")

	root.AddCommand(
		newTriangulateCmd(a),
		newVoronoiCmd(a),
		newDecomposeCmd(a),
		newRenderCmd(a),
		newVerifyCmd(a),
	)
	return root
}

// setup builds the logger and the effective config of a run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config := zap.NewProductionConfig()
	if a.verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("ranks") {
		cfg.Ranks = a.ranks
	}
	if flags.Changed("points") {
		cfg.Points.Count = a.count
	}
	if flags.Changed("seed") {
		cfg.Points.Seed = a.seed
	}
	if flags.Changed("planar") {
		cfg.Spherical = !a.planar
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger.Debug("config loaded",
		zap.String("path", a.configPath),
		zap.Int("ranks", cfg.Ranks),
		zap.Bool("spherical", cfg.Spherical),
		zap.String("points", cfg.Points.Kind),
	)
	return nil
}
