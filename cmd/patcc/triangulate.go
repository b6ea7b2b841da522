// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/2dChan/patcc"
	"github.com/2dChan/patcc/delaunay"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTriangulateCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "triangulate",
		Short: "Triangulate the configured points on a single rank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.triangulate()
			if err != nil {
				return err
			}
			results := tr.Results()
			fmt.Fprintf(cmd.OutOrStdout(), "points=%d triangles=%d hull_edges=%d overlaps=%d fast=%t\n",
				tr.NumInput(), len(results), len(tr.HullEdges()), len(tr.Overlaps()), tr.Fast())
			if out == "" {
				return nil
			}
			return writeFile(out, func(w io.Writer) error {
				for _, r := range results {
					ids := r.IDs()
					if _, err := fmt.Fprintf(w, "%d %d %d\n", ids[0], ids[1], ids[2]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write triangle ids to this file")
	return cmd
}

func newVoronoiCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "voronoi",
		Short: "Build the Voronoi cells of the configured points on a single rank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.triangulate()
			if err != nil {
				return err
			}
			d, err := patcc.NewDiagram(tr, patcc.WithLogger(a.logger))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cells=%d vertices=%d max_cell_vertices=%d\n",
				d.NumCells(), len(d.Vertices), d.MaxVertices())
			if out == "" {
				return nil
			}
			xs, ys, width := d.Padded()
			return writeFile(out, func(w io.Writer) error {
				for i := range d.NumCells() {
					if _, err := fmt.Fprintf(w, "%d", d.SiteIDs[i]); err != nil {
						return err
					}
					for j := range width {
						if _, err := fmt.Fprintf(w, " %g,%g", xs[i*width+j], ys[i*width+j]); err != nil {
							return err
						}
					}
					if _, err := fmt.Fprintln(w); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write padded cell vertices to this file")
	return cmd
}

func (a *app) triangulate() (*delaunay.Triangulation, error) {
	points := a.cfg.generate()
	a.logger.Info("triangulating", zap.Int("points", len(points)))
	return delaunay.NewTriangulation(points, a.cfg.Domain.Bounds(),
		delaunay.WithSpherical(a.cfg.Spherical),
		delaunay.WithLogger(a.logger),
	)
}

// writeFile creates path and hands a buffered writer to fn.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	return w.Flush()
}
