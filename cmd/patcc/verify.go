// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"fmt"
	"math"
	"slices"

	"github.com/2dChan/patcc/decomp"
	"github.com/2dChan/patcc/delaunay"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Reference points on the octahedron axes close the hull of a regional
// point set around the sphere.
var anchors = [][2]float64{{0, 0}, {90, 0}, {180, 0}, {270, 0}, {0, 90}, {0, -90}}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check a decomposed triangulation against an independent reference",
		Long: `verify decomposes the configured points, validates every partition mesh and
compares the union of owned triangles with a reference triangulation: the
convex hull of the points on the sphere, or a single-rank triangulation in the
plane. On the sphere only triangles whose circumcircle lies inside the domain
and clear of the poles are compared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points := a.cfg.generate()
			run, err := a.decompose(cmd.Context(), points)
			if err != nil {
				return err
			}
			var errs error
			for _, p := range run.partitions() {
				if p.Triangulation == nil {
					continue
				}
				if err := p.Triangulation.Validate(); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("partition %d: %w", p.ID, err))
				}
			}

			got := triples(run.owned())
			var want [][3]int
			if a.cfg.Spherical {
				want, err = hullReference(points, a.cfg.Domain.Bounds())
				if err != nil {
					return err
				}
				inside := func(ids [3]int) bool { return circleInDomain(points, ids, a.cfg.Domain.Bounds()) }
				want = slices.DeleteFunc(want, func(ids [3]int) bool { return !inside(ids) })
				got = slices.DeleteFunc(got, func(ids [3]int) bool { return !inside(ids) })
			} else {
				tr, err := delaunay.NewTriangulation(points, a.cfg.Domain.Bounds(), delaunay.WithLogger(a.logger))
				if err != nil {
					return err
				}
				want = triples(tr.Results())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "compared=%d decomposed=%d\n", len(want), len(got))
			if diff := cmp.Diff(want, got); diff != "" {
				a.logger.Debug("triangle sets differ", zap.String("diff", diff))
				errs = multierr.Append(errs, fmt.Errorf("decomposed triangulation differs from the reference in %d triangles",
					symmetricDifference(want, got)))
			}
			if errs != nil {
				return errs
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// hullReference triangulates points together with the anchors outside the
// domain and returns the triangles made of real points only.
func hullReference(points []delaunay.Point, domain delaunay.Bounds) ([][3]int, error) {
	all := slices.Clone(points)
	for _, ll := range anchors {
		if !domain.Contains(ll[0], ll[1]) {
			all = append(all, delaunay.Point{X: ll[0], Y: ll[1], ID: len(all)})
		}
	}
	hull, err := delaunay.HullTriangles(all)
	if err != nil {
		return nil, err
	}
	var out [][3]int
	for _, tri := range hull {
		if tri[2] < len(points) {
			out = append(out, tri)
		}
	}
	return out, nil
}

// circleInDomain reports whether the circumcircle of the triangle ids stays
// inside domain without covering a pole.
func circleInDomain(points []delaunay.Point, ids [3]int, domain delaunay.Bounds) bool {
	var r delaunay.ResultTriangle
	for k, id := range ids {
		r.V[k] = delaunay.ResultVertex{X: points[id].X, Y: points[id].Y, ID: id}
	}
	rect, ok := decomp.CircumRect(r)
	if !ok || rect.Lng.IsFull() {
		return false
	}
	deg := func(rad float64) float64 { return rad * 180 / math.Pi }
	if deg(rect.Lat.Lo) < domain.MinY || deg(rect.Lat.Hi) > domain.MaxY {
		return false
	}
	if domain.MinX == 0 && domain.MaxX == 360 {
		return true
	}
	width := domain.MaxX - domain.MinX
	if domain.Wraps() {
		width += 360
	}
	lo := domain.MinX + math.Mod(math.Mod(deg(rect.Lng.Lo)-domain.MinX, 360)+360, 360)
	return lo+deg(rect.Lng.Length()) <= domain.MinX+width
}

func triples(rs []delaunay.ResultTriangle) [][3]int {
	out := make([][3]int, len(rs))
	for i, r := range rs {
		out[i] = r.IDs()
	}
	slices.SortFunc(out, compareTriples)
	return out
}

func compareTriples(a, b [3]int) int {
	return slices.Compare(a[:], b[:])
}

func symmetricDifference(a, b [][3]int) int {
	seen := make(map[[3]int]int, len(a))
	for _, t := range a {
		seen[t]++
	}
	for _, t := range b {
		seen[t]--
	}
	n := 0
	for _, c := range seen {
		n += max(c, -c)
	}
	return n
}
