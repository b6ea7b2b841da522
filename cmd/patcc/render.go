// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"fmt"
	"io"
	"math"

	"github.com/2dChan/patcc/decomp"
	"github.com/2dChan/patcc/delaunay"
	svg "github.com/ajstarks/svgo"
	"github.com/golang/geo/r2"
	"github.com/spf13/cobra"
)

const (
	renderTriangles = "triangles"
	renderCells     = "cells"

	polygonStyle = "fill:%s;fill-opacity:0.35;stroke:rgb(170,170,170);stroke-width:1;stroke-opacity:1.0"
	siteStyle    = "fill:rgb(0,0,255)"
)

// Fills cycle through the partitions.
var palette = []string{
	"rgb(230,159,0)", "rgb(86,180,233)", "rgb(0,158,115)", "rgb(240,228,66)",
	"rgb(0,114,178)", "rgb(213,94,0)", "rgb(204,121,167)", "rgb(153,153,153)",
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		out   string
		what  string
		width int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Decompose the configured points and draw the result as SVG",
		Long: `render decomposes the configured points and draws the owned triangles or
the Voronoi cells of every partition, shaded by partition, in an equirectangular
projection. Shapes crossing the antimeridian are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if what != renderTriangles && what != renderCells {
				return fmt.Errorf("unknown shape %q, want %s or %s", what, renderTriangles, renderCells)
			}
			if width <= 0 {
				return fmt.Errorf("width must be positive, got %d", width)
			}
			run, err := a.decompose(cmd.Context(), a.cfg.generate())
			if err != nil {
				return err
			}
			s := newScreen(a.cfg.Domain.Bounds(), a.cfg.Spherical, width)
			return writeFile(out, func(w io.Writer) error {
				return s.render(w, run.partitions(), what == renderCells)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "patcc.svg", "output SVG file")
	cmd.Flags().StringVar(&what, "shape", renderTriangles, "shapes to draw: triangles or cells")
	cmd.Flags().IntVar(&width, "width", 1500, "image width in pixels")
	return cmd
}

// screen maps domain coordinates to pixels.
type screen struct {
	domain        delaunay.Bounds
	spherical     bool
	width, height int
	scale         float64
}

func newScreen(domain delaunay.Bounds, spherical bool, width int) *screen {
	w := domain.MaxX - domain.MinX
	if domain.Wraps() {
		w += 360
	}
	scale := float64(width) / w
	return &screen{
		domain:    domain,
		spherical: spherical,
		width:     width,
		height:    max(1, int(math.Ceil((domain.MaxY-domain.MinY)*scale))),
		scale:     scale,
	}
}

// unwrap moves longitudes west of a wrapping domain past 360.
func (s *screen) unwrap(x float64) float64 {
	if s.domain.Wraps() && x < s.domain.MinX {
		return x + 360
	}
	return x
}

func (s *screen) point(p r2.Point) (int, int) {
	return int((s.unwrap(p.X) - s.domain.MinX) * s.scale), int((s.domain.MaxY - p.Y) * s.scale)
}

// polygon projects ps, reporting false when it wraps around the globe.
func (s *screen) polygon(ps []r2.Point) (xs, ys []int, ok bool) {
	for _, p := range ps {
		if s.spherical && math.Abs(s.unwrap(p.X)-s.unwrap(ps[0].X)) > 180 {
			return nil, nil, false
		}
		x, y := s.point(p)
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, true
}

func (s *screen) render(w io.Writer, parts []*decomp.Partition, cells bool) error {
	canvas := svg.New(w)
	canvas.Start(s.width, s.height)
	canvas.Rect(0, 0, s.width, s.height, "fill:rgb(255,255,255)")

	for _, p := range parts {
		style := fmt.Sprintf(polygonStyle, palette[p.ID%len(palette)])
		if cells {
			if err := s.cells(canvas, p, style); err != nil {
				return err
			}
			continue
		}
		for _, r := range p.Owned() {
			if r.Cyclic {
				continue
			}
			ps := make([]r2.Point, 3)
			for k, v := range r.V {
				ps[k] = r2.Point{X: v.X, Y: v.Y}
			}
			if xs, ys, ok := s.polygon(ps); ok {
				canvas.Polygon(xs, ys, style)
			}
		}
	}

	for _, p := range parts {
		for _, pt := range p.Points {
			x, y := s.point(r2.Point{X: pt.X, Y: pt.Y})
			canvas.Circle(x, y, 2, siteStyle)
		}
	}
	canvas.End()
	return nil
}

func (s *screen) cells(canvas *svg.SVG, p *decomp.Partition, style string) error {
	if p.Triangulation == nil {
		return nil
	}
	d, err := p.Diagram()
	if err != nil {
		return fmt.Errorf("partition %d: %w", p.ID, err)
	}
	for i := range d.NumCells() {
		cell, err := d.Cell(i)
		if err != nil {
			return err
		}
		ps := make([]r2.Point, 0, cell.NumVertices())
		for j := range cell.NumVertices() {
			v, err := cell.Vertex(j)
			if err != nil {
				return err
			}
			ps = append(ps, v)
		}
		if xs, ys, ok := s.polygon(ps); ok {
			canvas.Polygon(xs, ys, style)
		}
	}
	return nil
}
