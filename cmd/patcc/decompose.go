// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"context"
	"fmt"
	"sync"
	"text/tabwriter"

	"github.com/2dChan/patcc/decomp"
	"github.com/2dChan/patcc/delaunay"
	"github.com/2dChan/patcc/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDecomposeCmd(a *app) *cobra.Command {
	var maxLevel int
	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Triangulate the configured points across in-process ranks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var setters []decomp.Option
			if cmd.Flags().Changed("max-level") {
				setters = append(setters, decomp.WithMaxLevel(maxLevel))
			}
			run, err := a.decompose(cmd.Context(), a.cfg.generate(), setters...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION\tKIND\tRANK\tPOINTS\tLEVEL\tTRIANGLES\tOWNED")
			total := 0
			for _, p := range run.partitions() {
				owned := len(p.Owned())
				total += owned
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
					p.ID, p.Kind, run.layout.Owner(p.ID), len(p.Points), p.Level, len(p.Results), owned)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "partitions=%d (%dx%d tiles, %d caps) owned_triangles=%d\n",
				run.layout.NumPartitions(), run.layout.NX, run.layout.NY,
				run.layout.North+run.layout.South, total)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max-level", 0, "cap the halo level of every partition")
	return cmd
}

// decomposition is the merged outcome of a run on every rank.
type decomposition struct {
	layout  *decomp.Layout
	results []*decomp.Result // by rank
}

// partitions lists every partition in id order.
func (d *decomposition) partitions() []*decomp.Partition {
	ps := make([]*decomp.Partition, d.layout.NumPartitions())
	for _, res := range d.results {
		for _, p := range res.Partitions {
			ps[p.ID] = p
		}
	}
	return ps
}

func (d *decomposition) owned() []delaunay.ResultTriangle {
	var out []delaunay.ResultTriangle
	for _, res := range d.results {
		out = append(out, res.Owned()...)
	}
	return out
}

// decompose deals points to the ranks round robin and runs the halo manager
// on every rank.
func (a *app) decompose(ctx context.Context, points []delaunay.Point, setters ...decomp.Option) (*decomposition, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	layout, err := decomp.NewLayout(a.cfg.Domain.Bounds(), a.cfg.Ranks, a.cfg.Spherical, a.cfg.Policy)
	if err != nil {
		return nil, err
	}
	a.logger.Info("decomposing",
		zap.Int("points", len(points)),
		zap.Int("ranks", layout.Ranks),
		zap.Int("partitions", layout.NumPartitions()),
	)

	setters = append([]decomp.Option{decomp.WithLogger(a.logger)}, setters...)
	d := &decomposition{layout: layout, results: make([]*decomp.Result, layout.Ranks)}
	var mu sync.Mutex
	err = transport.Run(ctx, layout.Ranks, func(ctx context.Context, c *transport.Comm) error {
		var share []delaunay.Point
		for i := c.Rank(); i < len(points); i += c.Size() {
			share = append(share, points[i])
		}
		res, err := decomp.Run(ctx, c, layout, share, setters...)
		if err != nil {
			return err
		}
		mu.Lock()
		d.results[c.Rank()] = res
		mu.Unlock()
		return nil
	}, transport.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return d, nil
}
