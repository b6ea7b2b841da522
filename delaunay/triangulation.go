// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package delaunay builds Delaunay triangulations of spherical or planar point
// sets by incremental insertion into a pooled half-edge mesh.
package delaunay

import (
	"fmt"

	"github.com/2dChan/patcc/pool"
	"go.uber.org/zap"
)

const (
	cyclicThreshold = 180.0
	numSeeds        = 4
	maxLat          = 89.5
	poleRelTol      = 2e-7
)

// Overlap records an input point that coincides with an inserted point and was
// left out of the mesh.
type Overlap struct {
	Input int
	Of    int
}

type Triangulation struct {
	opts      TriangulationOptions
	logger    *zap.Logger
	spherical bool
	bounds    Bounds // as given
	work      Bounds // wrap removed
	north     bool
	south     bool
	numInput  int
	kernel    int

	verts []vertex
	edges *pool.Pool[edge]
	tris  *pool.Pool[triangle]

	stack   []pool.Handle
	created []pool.Handle
	flips   []pool.Handle
	pending plist
	aliases map[int32]int32
	leaves  int
	fast    bool
}

// NewTriangulation triangulates points inside bounds. With WithSpherical the
// coordinates are longitude and latitude in degrees.
func NewTriangulation(points []Point, bounds Bounds, setters ...Option) (*Triangulation, error) {
	opts := defaultOptions()
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if len(points) < 3 {
		return nil, ErrTooFewPoints
	}
	kernel := opts.Kernel
	if kernel < 0 {
		kernel = len(points)
	}
	if kernel > len(points) {
		return nil, fmt.Errorf("delaunay: kernel size %d exceeds %d points", kernel, len(points))
	}

	edges, err := pool.New[edge](pool.WithPageSize(opts.PageSize))
	if err != nil {
		return nil, err
	}
	tris, err := pool.New[triangle](pool.WithPageSize(opts.PageSize))
	if err != nil {
		return nil, err
	}
	t := &Triangulation{
		opts:      opts,
		logger:    opts.Logger,
		spherical: opts.Spherical,
		bounds:    bounds,
		work:      bounds,
		numInput:  len(points),
		kernel:    kernel,
		edges:     edges,
		tris:      tris,
		pending:   emptyList,
		aliases:   make(map[int32]int32),
	}
	if bounds.Wraps() {
		t.work.MinX -= 360
	}
	if t.spherical {
		t.north = t.work.MaxY >= 90-poleRelTol*90
		t.south = t.work.MinY <= -90+poleRelTol*90
	}

	if err := t.loadPoints(points); err != nil {
		return nil, err
	}
	t.injectPoles()

	if opts.Fast {
		ok, err := t.tryFast()
		if err != nil {
			return nil, err
		}
		if ok {
			t.logger.Debug("regular grid triangulated directly",
				zap.Int("points", len(points)), zap.Int("triangles", t.leaves))
			return t, nil
		}
	}
	if t.north && t.south {
		return nil, ErrTwoPoles
	}

	t.nudgePoles()
	if err := t.bootstrap(); err != nil {
		return nil, err
	}
	if err := t.run(); err != nil {
		return nil, err
	}
	pruned := t.prune()
	if err := t.checkAliases(); err != nil {
		return nil, err
	}
	t.logger.Debug("points triangulated",
		zap.Int("points", len(points)),
		zap.Int("triangles", t.leaves),
		zap.Int("pruned", pruned),
		zap.Int("overlaps", len(t.aliases)))
	return t, nil
}

func (t *Triangulation) loadPoints(points []Point) error {
	t.verts = make([]vertex, numSeeds, numSeeds+len(points)*3/2+8)
	for i := range t.verts {
		t.verts[i] = vertex{id: IDVirtual, input: -1, next: -1, prev: -1}
	}
	for i, p := range points {
		if p.ID < 0 {
			return fmt.Errorf("delaunay: point %d has negative id %d", i, p.ID)
		}
		x := p.X
		if t.bounds.Wraps() && x >= t.bounds.MinX {
			x -= 360
		}
		v := vertex{
			x: x, y: p.Y,
			ox: p.X, oy: p.Y,
			id: p.ID, input: i, mask: p.Mask,
			next: -1, prev: -1,
		}
		if t.spherical {
			v.v = lonLatVector(p.X, p.Y)
		}
		t.verts = append(t.verts, v)
	}
	return nil
}

// addVirtual appends a synthetic vertex and returns its index.
func (t *Triangulation) addVirtual(x, y float64, id int) int32 {
	v := vertex{x: x, y: y, ox: x, oy: y, id: id, input: -1, next: -1, prev: -1}
	if t.spherical {
		v.v = lonLatVector(x, y)
	}
	t.verts = append(t.verts, v)
	return int32(len(t.verts) - 1)
}

func (t *Triangulation) setVirtual(i int32, x, y float64) {
	v := &t.verts[i]
	v.x, v.y, v.ox, v.oy = x, y, x, y
	if t.spherical {
		v.v = lonLatVector(x, y)
	}
}

func (t *Triangulation) inputs() (int32, int32) {
	return numSeeds, numSeeds + int32(t.numInput)
}

func (t *Triangulation) alias(q, w int32) {
	if !t.verts[q].real() {
		return
	}
	t.aliases[q] = w
}

func (t *Triangulation) resolve(q int32) int32 {
	w := t.aliases[q]
	for {
		next, ok := t.aliases[w]
		if !ok {
			return w
		}
		w = next
	}
}

func (t *Triangulation) checkAliases() error {
	for q := range t.aliases {
		if w := t.resolve(q); !t.verts[w].real() {
			return t.invariantError("checkAliases", "input point coincides with a synthetic vertex", q, w)
		}
	}
	return nil
}

// Overlaps returns the input points left out of the mesh because they coincide
// with an inserted point, ordered by input index.
func (t *Triangulation) Overlaps() []Overlap {
	out := make([]Overlap, 0, len(t.aliases))
	lo, hi := t.inputs()
	for q := lo; q < hi; q++ {
		if _, ok := t.aliases[q]; !ok {
			continue
		}
		out = append(out, Overlap{Input: t.verts[q].input, Of: t.verts[t.resolve(q)].input})
	}
	return out
}

// Face is a leaf triangle. V indexes Vertices; Open[k] is set when the side
// V[k] -> V[k+1] has no neighbouring triangle.
type Face struct {
	V    [3]int
	Open [3]bool
}

func (t *Triangulation) Vertices() []Vertex {
	out := make([]Vertex, len(t.verts))
	for i := range t.verts {
		out[i] = t.vertexView(int32(i))
	}
	return out
}

// Faces returns the leaf triangles in a deterministic order.
func (t *Triangulation) Faces() []Face {
	out := make([]Face, 0, t.leaves)
	t.tris.Walk(func(_ pool.Handle, tr *triangle) bool {
		var f Face
		for k := range 3 {
			f.V[k] = int(tr.v[k])
			f.Open[k] = !t.edges.Get(tr.e[k]).twin.Valid()
		}
		out = append(out, f)
		return true
	})
	return out
}

// HullEdges returns the open sides of real leaf triangles as input index pairs,
// oriented with the mesh on their left.
func (t *Triangulation) HullEdges() [][2]int {
	var out [][2]int
	t.tris.Walk(func(_ pool.Handle, tr *triangle) bool {
		if tr.virtual {
			return true
		}
		for k := range 3 {
			if t.edges.Get(tr.e[k]).twin.Valid() {
				continue
			}
			out = append(out, [2]int{t.verts[tr.v[k]].input, t.verts[tr.v[(k+1)%3]].input})
		}
		return true
	})
	return out
}

func (t *Triangulation) NumLeaves() int {
	return t.leaves
}

func (t *Triangulation) NumInput() int {
	return t.numInput
}

func (t *Triangulation) Kernel() int {
	return t.kernel
}

func (t *Triangulation) Spherical() bool {
	return t.spherical
}

// Fast reports whether the regular grid shortcut produced the mesh.
func (t *Triangulation) Fast() bool {
	return t.fast
}

func (t *Triangulation) Bounds() Bounds {
	return t.bounds
}
