// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package patcc

import (
	"errors"
	"fmt"
	"math"

	"github.com/2dChan/patcc/delaunay"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
	"go.uber.org/zap"
)

const (
	defaultEps = 1e-5

	// NullCoordValue fills the unused slots of Padded rows.
	NullCoordValue = -999999.0
)

var ErrDegenerateCell = errors.New("patcc: voronoi cell has fewer than 3 vertices")

// Diagram holds the Voronoi cells of the kernel points of a triangulation.
// Coordinates are longitude and latitude in degrees (longitude in [0, 360))
// on the sphere, x and y in the plane.
type Diagram struct {
	Spherical bool
	Sites     []r2.Point
	SiteIDs   []int
	Vertices  []r2.Point

	// NOTE: Sort in CCW per Cell(in lon/lat or x/y space)
	CellVertices []int
	CellOffsets  []int

	// Input indices of the Delaunay neighbours of each site, in CCW order.
	CellNeighbors   []int
	NeighborOffsets []int
}

type DiagramOptions struct {
	// Eps is the distance below which consecutive cell vertices merge.
	Eps    float64
	Logger *zap.Logger
}

type Option func(*DiagramOptions) error

func WithEps(eps float64) Option {
	return func(o *DiagramOptions) error {
		if eps <= 0 {
			return errors.New("WithEps: eps must be positive")
		}
		o.Eps = eps
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *DiagramOptions) error {
		if l == nil {
			return errors.New("WithLogger: logger must not be nil")
		}
		o.Logger = l
		return nil
	}
}

// NewDiagram builds the cells of the first tr.Kernel() input points. Points
// that were merged into a coincident point share its cell.
func NewDiagram(tr *delaunay.Triangulation, setters ...Option) (*Diagram, error) {
	opts := DiagramOptions{
		Eps:    defaultEps,
		Logger: zap.NewNop(),
	}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if tr == nil {
		return nil, errors.New("patcc: nil triangulation")
	}

	g := newGenerator(tr, opts)
	kernel := tr.Kernel()
	d := &Diagram{
		Spherical:       tr.Spherical(),
		Sites:           make([]r2.Point, kernel),
		SiteIDs:         make([]int, kernel),
		CellOffsets:     make([]int, kernel+1),
		NeighborOffsets: make([]int, kernel+1),
	}
	for i := range kernel {
		c, err := g.cell(i)
		if err != nil {
			return nil, err
		}
		v := g.verts[g.arena[i]]
		d.Sites[i] = r2.Point{X: v.X, Y: v.Y}
		d.SiteIDs[i] = v.ID
		d.CellVertices = append(d.CellVertices, c.vs...)
		d.CellNeighbors = append(d.CellNeighbors, c.ns...)
		d.CellOffsets[i+1] = len(d.CellVertices)
		d.NeighborOffsets[i+1] = len(d.CellNeighbors)
	}
	d.Vertices = g.vertices

	opts.Logger.Debug("voronoi cells generated",
		zap.Int("cells", kernel),
		zap.Int("vertices", len(d.Vertices)),
		zap.Int("aliases", len(g.alias)))
	return d, nil
}

func (d *Diagram) NumCells() int {
	return len(d.Sites)
}

func (d *Diagram) Cell(i int) (Cell, error) {
	if i < 0 || i >= d.NumCells() {
		return Cell{}, fmt.Errorf("Cell: index %d out of range [0 %d)", i, d.NumCells())
	}
	return Cell{idx: i, d: d}, nil
}

// MaxVertices returns the vertex count of the largest cell.
func (d *Diagram) MaxVertices() int {
	width := 0
	for i := range d.NumCells() {
		width = max(width, d.CellOffsets[i+1]-d.CellOffsets[i])
	}
	return width
}

// Padded returns the cell vertices as row-major x (longitude) and y (latitude)
// arrays of NumCells() rows of width MaxVertices(), filled up with
// NullCoordValue. On the sphere every longitude is unwrapped to lie within 180
// degrees of its site.
func (d *Diagram) Padded() (xs, ys []float64, width int) {
	width = d.MaxVertices()
	xs = make([]float64, d.NumCells()*width)
	ys = make([]float64, d.NumCells()*width)
	for i := range d.NumCells() {
		row := xs[i*width : (i+1)*width]
		col := ys[i*width : (i+1)*width]
		idx := d.CellVertices[d.CellOffsets[i]:d.CellOffsets[i+1]]
		for j := range width {
			if j >= len(idx) {
				row[j], col[j] = NullCoordValue, NullCoordValue
				continue
			}
			v := d.Vertices[idx[j]]
			if d.Spherical {
				v.X = d.Sites[i].X + unwrap(v.X-d.Sites[i].X)
			}
			row[j], col[j] = v.X, v.Y
		}
	}
	return xs, ys, width
}

func triangleCircumcenter(p1, p2, p3 s2.Point) s2.Point {
	v1 := p1.Sub(p2.Vector)
	v2 := p2.Sub(p3.Vector)

	circumcenter := v1.Cross(v2)

	if circumcenter.Dot(p1.Vector.Add(p2.Vector).Add(p3.Vector)) < 0 {
		circumcenter = circumcenter.Mul(-1)
	}

	return s2.Point{Vector: circumcenter}
}

func planarCircumcenter(a, b, c r2.Point) (r2.Point, bool) {
	b, c = b.Sub(a), c.Sub(a)
	d := 2 * b.Cross(c)
	if d == 0 {
		return r2.Point{}, false
	}
	b2, c2 := b.Dot(b), c.Dot(c)
	return r2.Point{
		X: a.X + (c.Y*b2-b.Y*c2)/d,
		Y: a.Y + (b.X*c2-c.X*b2)/d,
	}, true
}

// unwrap maps a longitude difference into (-180, 180].
func unwrap(d float64) float64 {
	d = math.Mod(d, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

func norm360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}
