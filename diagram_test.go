// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package patcc

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/2dChan/patcc/delaunay"
	"github.com/2dChan/patcc/utils"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
)

// DiagramOptions

func TestWithEps(t *testing.T) {
	tests := []struct {
		name    string
		eps     float64
		wantErr bool
	}{
		{"eps positive", 0.5, false},
		{"eps zero", 0, true},
		{"eps negative", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &DiagramOptions{Eps: defaultEps}
			opt := WithEps(tt.eps)
			err := opt(opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithEps(%v) error = %v, wantErr %v", tt.eps, err, tt.wantErr)
			}
			if err == nil && opts.Eps != tt.eps {
				t.Errorf("WithEps(%v) opts.Eps = %v, want %v", tt.eps, opts.Eps, tt.eps)
			}
		})
	}
}

func TestWithLogger(t *testing.T) {
	opts := &DiagramOptions{}
	if err := WithLogger(nil)(opts); err == nil {
		t.Errorf("WithLogger(nil) error = nil, want non-nil")
	}
	if err := WithLogger(zap.NewNop())(opts); err != nil {
		t.Errorf("WithLogger(zap.NewNop()) error = %v, want nil", err)
	}
}

// Diagram

func TestNewDiagram_WithEps(t *testing.T) {
	tr := mustNewGrid(t, 3)
	tests := []struct {
		name    string
		eps     float64
		wantErr bool
	}{
		{"eps positive small", 0.01, false},
		{"eps zero", 0, true},
		{"eps negative", -0.01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDiagram(tr, WithEps(tt.eps))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDiagram(..., WithEps(%v)) error = %v, wantErr %v", tt.eps, err, tt.wantErr)
			}
		})
	}
}

func TestNewDiagram_NilTriangulation(t *testing.T) {
	if _, err := NewDiagram(nil); err == nil {
		t.Errorf("NewDiagram(nil) error = nil, want non-nil")
	}
}

func TestNewDiagram_GridCells(t *testing.T) {
	vd := mustNewDiagram(t, mustNewGrid(t, 5))

	tests := []struct {
		name  string
		input int
		want  []r2.Point
	}{
		{
			"interior",
			12,
			[]r2.Point{{X: 1.5, Y: 1.5}, {X: 2.5, Y: 1.5}, {X: 2.5, Y: 2.5}, {X: 1.5, Y: 2.5}},
		},
		{
			"corner",
			0,
			[]r2.Point{{X: 0.5, Y: 0}, {X: 0.5, Y: 0.5}, {X: 0, Y: 0.5}, {X: 0, Y: 0}},
		},
		{
			"side",
			2,
			[]r2.Point{{X: 2.5, Y: 0}, {X: 2.5, Y: 0.5}, {X: 1.5, Y: 0.5}, {X: 1.5, Y: 0}, {X: 2, Y: 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cellPolygon(t, vd, tt.input)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("cell %d vertices mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestNewDiagram_Closure(t *testing.T) {
	points, hull := framedPoints(200)
	tr, err := delaunay.NewTriangulation(points, delaunay.Bounds{MaxX: 10, MaxY: 10})
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	if got := vd.NumCells(); got != len(points) {
		t.Fatalf("vd.NumCells() = %d, want %d", got, len(points))
	}
	for i := range vd.NumCells() {
		poly := cellPolygon(t, vd, i)
		assertSimpleCCW(t, i, poly)
		if i >= hull && !strictlyInside(poly, vd.Sites[i]) {
			t.Errorf("cell %d does not strictly contain its site %v: %v", i, vd.Sites[i], poly)
		}
	}
}

func TestNewDiagram_UnframedPoints(t *testing.T) {
	rect := r2.RectFromPoints(r2.Point{X: 0, Y: -40}, r2.Point{X: 120, Y: 40})
	var points []delaunay.Point
	for i, p := range utils.GenerateRandomPlanar(150, 0, rect) {
		points = append(points, delaunay.Point{X: p.X, Y: p.Y, ID: i})
	}
	tr, err := delaunay.NewTriangulation(points, delaunay.Bounds{MinX: 0, MaxX: 120, MinY: -40, MaxY: 40})
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	if got := vd.NumCells(); got != len(points) {
		t.Fatalf("vd.NumCells() = %d, want %d", got, len(points))
	}
	for i := range vd.NumCells() {
		if n := len(cellPolygon(t, vd, i)); n < 3 {
			t.Errorf("cell %d has %d vertices, want at least 3", i, n)
		}
	}
}

func TestNewDiagram_SphericalPatch(t *testing.T) {
	rect := r2.RectFromPoints(r2.Point{X: 350, Y: -20}, r2.Point{X: 370, Y: 20})
	var points []delaunay.Point
	for i, p := range utils.GenerateRandomPlanar(300, 2, rect) {
		points = append(points, delaunay.Point{X: norm360(p.X), Y: p.Y, ID: i})
	}
	bounds := delaunay.Bounds{MinX: 350, MaxX: 10, MinY: -20, MaxY: 20}
	tr, err := delaunay.NewTriangulation(points, bounds, delaunay.WithSpherical(true))
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	xs, ys, width := vd.Padded()
	for i := range vd.NumCells() {
		var poly []r2.Point
		for j := range width {
			if xs[i*width+j] == NullCoordValue {
				break
			}
			poly = append(poly, r2.Point{X: xs[i*width+j], Y: ys[i*width+j]})
		}
		assertSimpleCCW(t, i, poly)
		site := vd.Sites[i]
		if math.Abs(unwrap(site.X)) < 5 && math.Abs(site.Y) < 15 && !strictlyInside(poly, site) {
			t.Errorf("cell %d does not strictly contain its site %v: %v", i, site, poly)
		}
	}
}

func TestNewDiagram_PolarCapClosure(t *testing.T) {
	//nolint:gosec
	random := rand.New(rand.NewSource(4))
	var points []delaunay.Point
	for i := range 300 {
		points = append(points, delaunay.Point{X: random.Float64() * 360, Y: 60 + random.Float64()*29, ID: i})
	}
	bounds := delaunay.Bounds{MinX: 0, MaxX: 360, MinY: 60, MaxY: 90}
	tr, err := delaunay.NewTriangulation(points, bounds,
		delaunay.WithSpherical(true), delaunay.WithPolar(delaunay.PolarNorth))
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	// Cells are checked in the tangent plane at their site, where their
	// great circle sides are straight.
	g := &generator{spherical: true}
	checked := 0
	for i := range vd.NumCells() {
		site := vd.Sites[i]
		if site.Y < 66 {
			continue
		}
		c, err := vd.Cell(i)
		if err != nil {
			t.Fatalf("vd.Cell(%d) error = %v, want nil", i, err)
		}
		fr := g.frame(site)
		poly := make([]r2.Point, c.NumVertices())
		for j := range poly {
			v, err := c.Vertex(j)
			if err != nil {
				t.Fatalf("c.Vertex(%d) error = %v, want nil", j, err)
			}
			if v == site {
				t.Errorf("cell %d at %v uses its own site as a vertex", i, site)
			}
			poly[j] = g.local(v, fr)
		}
		assertSimpleCCW(t, i, poly)
		if !strictlyInside(poly, r2.Point{}) {
			t.Errorf("cell %d does not strictly contain its site %v: %v", i, site, poly)
		}
		checked++
	}
	if checked < 150 {
		t.Errorf("checked %d cells above latitude 66, want at least 150", checked)
	}
}

func TestNewDiagram_PoleCells(t *testing.T) {
	var points []delaunay.Point
	for j, lat := range []float64{-45, -15, 15, 45} {
		for i, lon := range []float64{0, 90, 180, 270} {
			points = append(points, delaunay.Point{X: lon, Y: lat, ID: j*4 + i})
		}
	}
	bounds := delaunay.Bounds{MinX: 0, MaxX: 360, MinY: -90, MaxY: 90}
	tr, err := delaunay.NewTriangulation(points, bounds,
		delaunay.WithSpherical(true), delaunay.WithPolar(delaunay.PolarBoth))
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	got := cellPolygon(t, vd, 12)
	if len(got) != 4 {
		t.Fatalf("cell 12 has %d vertices, want 4: %v", len(got), got)
	}
	wantLons := []float64{315, 45, 45, 315}
	for i, v := range got {
		if math.Abs(v.X-wantLons[i]) > 1e-9 {
			t.Errorf("cell 12 vertex %d longitude = %v, want %v", i, v.X, wantLons[i])
		}
	}
	if got[2].Y != 90 || got[3].Y != 90 {
		t.Errorf("cell 12 pole vertices = %v, %v, want latitude 90", got[2], got[3])
	}
	if math.Abs(got[0].Y-got[1].Y) > 1e-9 || got[0].Y <= 15 || got[0].Y >= 45 {
		t.Errorf("cell 12 lower vertices = %v, %v, want equal latitudes in (15, 45)", got[0], got[1])
	}

	c, err := vd.Cell(12)
	if err != nil {
		t.Fatalf("vd.Cell(12) error = %v, want nil", err)
	}
	if got := c.NumNeighbors(); got != 5 {
		t.Errorf("c.NumNeighbors() = %d, want 5", got)
	}
	for i := range vd.NumCells() {
		if n := len(cellPolygon(t, vd, i)); n < 3 {
			t.Errorf("cell %d has %d vertices, want at least 3", i, n)
		}
	}
}

func TestNewDiagram_Aliases(t *testing.T) {
	points, _ := framedPoints(30)
	dup := points[len(points)-1]
	dup.ID = len(points)
	points = append(points, dup)
	tr, err := delaunay.NewTriangulation(points, delaunay.Bounds{MaxX: 10, MaxY: 10})
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)

	a, err := vd.Cell(len(points) - 2)
	if err != nil {
		t.Fatalf("vd.Cell(%d) error = %v, want nil", len(points)-2, err)
	}
	b, err := vd.Cell(len(points) - 1)
	if err != nil {
		t.Fatalf("vd.Cell(%d) error = %v, want nil", len(points)-1, err)
	}
	if diff := cmp.Diff(b.VertexIndices(), a.VertexIndices()); diff != "" {
		t.Errorf("aliased cell vertices mismatch (-kept +alias):\n%s", diff)
	}
	if a.SiteID() != len(points)-2 || b.SiteID() != len(points)-1 {
		t.Errorf("SiteID() = %d, %d, want %d, %d", a.SiteID(), b.SiteID(), len(points)-2, len(points)-1)
	}
}

func TestNewDiagram_Kernel(t *testing.T) {
	points := gridPoints(4)
	tr, err := delaunay.NewTriangulation(points, delaunay.Bounds{MaxX: 3, MaxY: 3}, delaunay.WithKernel(5))
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	vd := mustNewDiagram(t, tr)
	if got := vd.NumCells(); got != 5 {
		t.Errorf("vd.NumCells() = %d, want 5", got)
	}
	c, err := vd.Cell(4)
	if err != nil {
		t.Fatalf("vd.Cell(4) error = %v, want nil", err)
	}
	for i, n := range c.NeighborIndices() {
		_, err := c.Neighbor(i)
		if (err != nil) != (n >= 5) {
			t.Errorf("c.Neighbor(%d) for input %d error = %v", i, n, err)
		}
	}
}

func TestDiagram_Padded(t *testing.T) {
	vd := mustNewDiagram(t, mustNewGrid(t, 3))
	xs, ys, width := vd.Padded()
	if width != vd.MaxVertices() {
		t.Errorf("width = %d, want %d", width, vd.MaxVertices())
	}
	if len(xs) != vd.NumCells()*width || len(ys) != len(xs) {
		t.Fatalf("len(xs), len(ys) = %d, %d, want %d", len(xs), len(ys), vd.NumCells()*width)
	}
	for i := range vd.NumCells() {
		c, err := vd.Cell(i)
		if err != nil {
			t.Fatalf("vd.Cell(%d) error = %v, want nil", i, err)
		}
		for j := range width {
			if j < c.NumVertices() {
				v, _ := c.Vertex(j)
				if xs[i*width+j] != v.X || ys[i*width+j] != v.Y {
					t.Errorf("Padded() cell %d slot %d = (%v, %v), want %v", i, j, xs[i*width+j], ys[i*width+j], v)
				}
				continue
			}
			if xs[i*width+j] != NullCoordValue || ys[i*width+j] != NullCoordValue {
				t.Errorf("Padded() cell %d slot %d = (%v, %v), want NullCoordValue", i, j, xs[i*width+j], ys[i*width+j])
			}
		}
	}
}

func TestDiagram_Cell(t *testing.T) {
	vd := mustNewDiagram(t, mustNewGrid(t, 3))
	if _, err := vd.Cell(-1); err == nil {
		t.Errorf("vd.Cell(-1) error = nil, want non-nil")
	}
	if _, err := vd.Cell(vd.NumCells()); err == nil {
		t.Errorf("vd.Cell(%d) error = nil, want non-nil", vd.NumCells())
	}
}

func TestTriangleCircumcenter(t *testing.T) {
	tests := []struct {
		name       string
		p0, p1, p2 s2.Point
		want       s2.Point
	}{
		{
			"xyz orthonormal",
			s2.PointFromCoords(1, 0, 0),
			s2.PointFromCoords(0, 1, 0),
			s2.PointFromCoords(0, 0, 1),
			s2.PointFromCoords(1, 1, 1),
		},
		{
			"xyz orthonormal reversed",
			s2.PointFromCoords(0, 0, 1),
			s2.PointFromCoords(0, 1, 0),
			s2.PointFromCoords(1, 0, 0),
			s2.PointFromCoords(1, 1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s2.Point{Vector: triangleCircumcenter(tt.p0, tt.p1, tt.p2).Normalize()}
			if got.Distance(tt.want) > 1e-9 {
				t.Errorf("triangleCircumcenter(...) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanarCircumcenter(t *testing.T) {
	got, ok := planarCircumcenter(r2.Point{X: 0, Y: 0}, r2.Point{X: 2, Y: 0}, r2.Point{X: 0, Y: 2})
	if !ok || got != (r2.Point{X: 1, Y: 1}) {
		t.Errorf("planarCircumcenter(...) = %v, %v, want (1, 1), true", got, ok)
	}
	if _, ok := planarCircumcenter(r2.Point{}, r2.Point{X: 1, Y: 1}, r2.Point{X: 2, Y: 2}); ok {
		t.Errorf("planarCircumcenter(collinear) ok = true, want false")
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {180, 180}, {-180, 180}, {190, -170}, {-190, 170}, {725, 5},
	}
	for _, tt := range tests {
		if got := unwrap(tt.in); got != tt.want {
			t.Errorf("unwrap(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGenerator_Dedupe(t *testing.T) {
	g := &generator{opts: DiagramOptions{Eps: defaultEps}}
	cs := g.dedupe([]corner{
		{idx: 0, p: r2.Point{X: 1}},
		{idx: 1, p: r2.Point{X: 1}},
		{idx: 2, p: r2.Point{Y: 1}},
		{idx: 3, p: r2.Point{X: 1, Y: 1e-7}},
	})
	got := make([]int, len(cs))
	for i, c := range cs {
		got[i] = c.idx
	}
	if diff := cmp.Diff([]int{0, 2}, got); diff != "" {
		t.Errorf("dedupe(...) mismatch (-want +got):\n%s", diff)
	}
}

func TestDropCollinear(t *testing.T) {
	cs := []corner{
		{idx: 0, p: r2.Point{X: 1, Y: -1}},
		{idx: 1, p: r2.Point{X: 1, Y: 0}},
		{idx: 2, p: r2.Point{X: 1, Y: 1}},
		{idx: 3, p: r2.Point{X: -1, Y: 1}},
		{idx: 4, p: r2.Point{X: -1, Y: -1}},
	}
	got := dropCollinear(cs)
	if len(got) != 4 || got[1].idx != 2 {
		t.Errorf("dropCollinear(...) = %v, want corner 1 removed", got)
	}
}

func TestSiteGap(t *testing.T) {
	inside := []corner{{p: r2.Point{X: 1}}, {p: r2.Point{Y: 1}}, {p: r2.Point{X: -1, Y: -1}}}
	if _, outside := siteGap(inside); outside {
		t.Errorf("siteGap(inside) outside = true, want false")
	}
	open := []corner{{p: r2.Point{X: 1}}, {p: r2.Point{X: 1, Y: 1}}, {p: r2.Point{Y: 1}}}
	at, outside := siteGap(open)
	if !outside || at != 3 {
		t.Errorf("siteGap(open) = %d, %v, want 3, true", at, outside)
	}
}

// Benchmarks

func BenchmarkNewDiagram(b *testing.B) {
	sizes := []int{1e+2, 1e+3, 1e+4}
	for _, pointsCnt := range sizes {
		b.Run(fmt.Sprintf("N%d", pointsCnt), func(b *testing.B) {
			points, _ := framedPoints(pointsCnt)
			tr, err := delaunay.NewTriangulation(points, delaunay.Bounds{MaxX: 10, MaxY: 10})
			if err != nil {
				b.Fatalf("NewTriangulation(...) error = %v, want nil", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				_, err := NewDiagram(tr)
				if err != nil {
					b.Fatalf("NewDiagram(...) error = %v, want nil", err)
				}
			}
		})
	}
}

// Helpers

func mustNewDiagram(t *testing.T, tr *delaunay.Triangulation) *Diagram {
	t.Helper()
	vd, err := NewDiagram(tr)
	if err != nil {
		t.Fatalf("NewDiagram(...) error = %v, want nil", err)
	}
	return vd
}

func mustNewGrid(t *testing.T, n int) *delaunay.Triangulation {
	t.Helper()
	size := float64(n - 1)
	tr, err := delaunay.NewTriangulation(gridPoints(n), delaunay.Bounds{MaxX: size, MaxY: size})
	if err != nil {
		t.Fatalf("NewTriangulation(...) error = %v, want nil", err)
	}
	return tr
}

func gridPoints(n int) []delaunay.Point {
	size := float64(n - 1)
	rect := r2.RectFromPoints(r2.Point{}, r2.Point{X: size, Y: size})
	var out []delaunay.Point
	for i, p := range utils.GenerateGrid(rect, n, n) {
		out = append(out, delaunay.Point{X: p.X, Y: p.Y, ID: i})
	}
	return out
}

// framedPoints returns the boundary of [0,10]^2 sampled every 0.5 followed by
// n random interior points, and the number of boundary points.
func framedPoints(n int) ([]delaunay.Point, int) {
	var ps []r2.Point
	for i := range 20 {
		d := float64(i) * 0.5
		ps = append(ps, r2.Point{X: d, Y: 0}, r2.Point{X: 10, Y: d}, r2.Point{X: 10 - d, Y: 10}, r2.Point{X: 0, Y: 10 - d})
	}
	hull := len(ps)
	inner := r2.RectFromPoints(r2.Point{X: 1, Y: 1}, r2.Point{X: 9, Y: 9})
	ps = append(ps, utils.GenerateRandomPlanar(n, 1, inner)...)
	out := make([]delaunay.Point, len(ps))
	for i, p := range ps {
		out[i] = delaunay.Point{X: p.X, Y: p.Y, ID: i}
	}
	return out, hull
}

func cellPolygon(t *testing.T, vd *Diagram, i int) []r2.Point {
	t.Helper()
	c, err := vd.Cell(i)
	if err != nil {
		t.Fatalf("vd.Cell(%d) error = %v, want nil", i, err)
	}
	out := make([]r2.Point, c.NumVertices())
	for j := range out {
		if out[j], err = c.Vertex(j); err != nil {
			t.Fatalf("c.Vertex(%d) error = %v, want nil", j, err)
		}
	}
	return out
}

func assertSimpleCCW(t *testing.T, i int, poly []r2.Point) {
	t.Helper()
	n := len(poly)
	if n < 3 {
		t.Errorf("cell %d has %d vertices, want at least 3", i, n)
		return
	}
	area := 0.0
	for k := range n {
		area += poly[k].Cross(poly[(k+1)%n])
	}
	if area <= 0 {
		t.Errorf("cell %d signed area = %v, want positive", i, area/2)
	}
	for a := range n {
		for b := a + 2; b < n; b++ {
			if a == 0 && b == n-1 {
				continue
			}
			if properCross(poly[a], poly[(a+1)%n], poly[b], poly[(b+1)%n]) {
				t.Errorf("cell %d edges %d and %d intersect", i, a, b)
			}
		}
	}
}

func properCross(a, b, c, d r2.Point) bool {
	o := func(p, q, r r2.Point) float64 { return q.Sub(p).Cross(r.Sub(p)) }
	return o(a, b, c)*o(a, b, d) < 0 && o(c, d, a)*o(c, d, b) < 0
}

func strictlyInside(poly []r2.Point, p r2.Point) bool {
	n := len(poly)
	for k := range n {
		if poly[k].Sub(p).Cross(poly[(k+1)%n].Sub(p)) <= 0 {
			return false
		}
	}
	return true
}
