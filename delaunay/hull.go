// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/markus-wa/quickhull-go/v2"
)

const (
	defaultHullEps = 1e-12
)

var ErrHullTooFewPoints = errors.New("delaunay: insufficient points for hull triangulation (minimum 4 required)")

type HullOptions struct {
	Eps float64
}

type HullOption func(*HullOptions) error

func WithHullEps(eps float64) HullOption {
	return func(o *HullOptions) error {
		if eps <= 0 {
			return errors.New("WithHullEps: eps must be positive")
		}
		o.Eps = eps
		return nil
	}
}

// HullTriangles returns the Delaunay triangulation of spherical points
// taken from the 3-D convex hull of their unit vectors. Each triangle is the
// ascending triple of its point IDs and the list is sorted. It serves as an
// independent reference for the incremental engine.
//
// NOTE: The points must not all fit in one hemisphere.
func HullTriangles(points []Point, setters ...HullOption) ([][3]int, error) {
	opts := HullOptions{
		Eps: defaultHullEps,
	}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}

	n := len(points)
	if n < 4 {
		return nil, ErrHullTooFewPoints
	}
	vs := make([]r3.Vector, n)
	for i, p := range points {
		vs[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Y, p.X)).Vector
	}
	qh := new(quickhull.QuickHull)
	ch := qh.ConvexHull(vs, true, true, opts.Eps)
	want := 2 * (n - 2)
	if len(ch.Indices) != want*3 {
		return nil, fmt.Errorf("delaunay: hull of %d points has %d faces, want %d",
			n, len(ch.Indices)/3, want)
	}

	out := make([][3]int, want)
	for i := range out {
		for k := range 3 {
			out[i][k] = points[ch.Indices[i*3+k]].ID
		}
		slices.Sort(out[i][:])
	}
	slices.SortFunc(out, compareTriples)
	return out, nil
}

func compareTriples(a, b [3]int) int {
	for k := range 3 {
		if c := cmp.Compare(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}
