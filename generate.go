// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package patcc

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/2dChan/patcc/delaunay"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

const collinearTol = 1e-12

type cellData struct {
	vs []int
	ns []int
}

// generator walks a finished triangulation and assembles cells on demand.
type generator struct {
	opts      DiagramOptions
	spherical bool
	verts     []delaunay.Vertex
	faces     []delaunay.Face
	arena     []int   // input index -> vertex index
	incident  [][]int // vertex index -> faces
	alias     map[int]int

	faceVertex map[int]int
	edgeVertex map[[2]int]int
	vertices   []r2.Point
	cells      map[int]cellData
}

func newGenerator(tr *delaunay.Triangulation, opts DiagramOptions) *generator {
	g := &generator{
		opts:       opts,
		spherical:  tr.Spherical(),
		verts:      tr.Vertices(),
		faces:      tr.Faces(),
		arena:      make([]int, tr.NumInput()),
		alias:      make(map[int]int),
		faceVertex: make(map[int]int),
		edgeVertex: make(map[[2]int]int),
		cells:      make(map[int]cellData),
	}
	for i := range g.arena {
		g.arena[i] = -1
	}
	for a, v := range g.verts {
		if v.Input >= 0 {
			g.arena[v.Input] = a
		}
	}
	g.incident = make([][]int, len(g.verts))
	for f, face := range g.faces {
		for _, a := range face.V {
			g.incident[a] = append(g.incident[a], f)
		}
	}
	for _, o := range tr.Overlaps() {
		g.alias[o.Input] = o.Of
	}
	return g
}

// corner is a cell vertex in coordinates relative to the site.
type corner struct {
	idx  int
	p    r2.Point
	ang  float64
	dist float64
}

func (g *generator) cell(input int) (cellData, error) {
	if c, ok := g.cells[input]; ok {
		return c, nil
	}
	if of, ok := g.alias[input]; ok {
		c, err := g.cell(of)
		if err != nil {
			return cellData{}, err
		}
		g.cells[input] = c
		return c, nil
	}

	a := g.arena[input]
	site := g.verts[a]
	fr := g.frame(r2.Point{X: site.MeshX, Y: site.MeshY})

	var cs []corner
	add := func(idx int) {
		p := g.local(g.vertices[idx], fr)
		cs = append(cs, corner{idx: idx, p: p, ang: math.Atan2(p.Y, p.X), dist: p.Norm()})
	}
	var ns []corner
	seen := make(map[int]bool)
	for _, f := range g.incident[a] {
		face := g.faces[f]
		if idx, ok := g.circumVertex(f); ok {
			add(idx)
		}
		for k := range 3 {
			u, w := face.V[k], face.V[(k+1)%3]
			if face.Open[k] && (u == a || w == a) {
				add(g.midVertex(u, w))
			}
			if b := face.V[k]; b != a && g.verts[b].Kind == delaunay.KindReal && !seen[b] {
				seen[b] = true
				p := g.local(r2.Point{X: g.verts[b].MeshX, Y: g.verts[b].MeshY}, fr)
				ns = append(ns, corner{idx: g.verts[b].Input, p: p, ang: math.Atan2(p.Y, p.X), dist: p.Norm()})
			}
		}
	}

	sortCorners(cs)
	cs = g.dedupe(cs)
	cs = dropCollinear(cs)
	if at, outside := siteGap(cs); outside {
		idx := len(g.vertices)
		g.vertices = append(g.vertices, g.lonLat(site.X, site.Y))
		cs = slices.Insert(cs, at, corner{idx: idx})
	}
	if len(cs) < 3 {
		return cellData{}, fmt.Errorf("%w: point %d (id %d) at (%.10g, %.10g) keeps %d",
			ErrDegenerateCell, input, site.ID, site.X, site.Y, len(cs))
	}

	sortCorners(ns)
	c := cellData{vs: make([]int, len(cs)), ns: make([]int, len(ns))}
	for i := range cs {
		c.vs[i] = cs[i].idx
	}
	for i := range ns {
		c.ns[i] = ns[i].idx
	}
	g.cells[input] = c
	return c, nil
}

// frame is a coordinate system centred on a site. On the sphere its axes
// point east, north and up at the site.
type frame struct {
	origin          r2.Point
	east, north, up r3.Vector
}

func (g *generator) frame(origin r2.Point) frame {
	f := frame{origin: origin}
	if g.spherical {
		lon, lat := origin.X*math.Pi/180, origin.Y*math.Pi/180
		sinLon, cosLon := math.Sincos(lon)
		sinLat, cosLat := math.Sincos(lat)
		f.east = r3.Vector{X: -sinLon, Y: cosLon}
		f.north = r3.Vector{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
		f.up = r3.Vector{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
	}
	return f
}

// local returns p in the frame f. On the sphere p is projected
// gnomonically onto the tangent plane at the site, in degrees, so that
// great circle arcs stay straight; points beyond the horizon keep their
// bearing at their arc distance.
func (g *generator) local(p r2.Point, f frame) r2.Point {
	if !g.spherical {
		return p.Sub(f.origin)
	}
	v := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Y, p.X)).Vector
	x, y, z := v.Dot(f.east), v.Dot(f.north), v.Dot(f.up)
	scale := 180 / math.Pi
	if z > 0 {
		scale /= z
	} else if r := math.Hypot(x, y); r > 0 {
		scale *= math.Atan2(r, z) / r
	}
	return r2.Point{X: x * scale, Y: y * scale}
}

func (g *generator) lonLat(x, y float64) r2.Point {
	if g.spherical {
		return r2.Point{X: norm360(x), Y: y}
	}
	return r2.Point{X: x, Y: y}
}

func (g *generator) point(a int) s2.Point {
	v := g.verts[a]
	return s2.PointFromLatLng(s2.LatLngFromDegrees(v.MeshY, v.MeshX))
}

func (g *generator) fromPoint(p s2.Point) r2.Point {
	ll := s2.LatLngFromPoint(p)
	return r2.Point{X: norm360(ll.Lng.Degrees()), Y: ll.Lat.Degrees()}
}

// circumVertex returns the cell vertex contributed by face f. A face made of
// two real points and a pole contributes the point on the pole at their mean
// longitude; faces with other synthetic corners contribute nothing.
func (g *generator) circumVertex(f int) (int, bool) {
	if idx, ok := g.faceVertex[f]; ok {
		return idx, idx >= 0
	}
	face := g.faces[f]
	vs := face.V
	slices.SortFunc(vs[:], func(x, y int) int {
		return cmp.Or(cmp.Compare(g.verts[x].ID, g.verts[y].ID), cmp.Compare(x, y))
	})

	pole, reals := -1, 0
	for _, a := range vs {
		switch g.verts[a].Kind {
		case delaunay.KindReal:
			reals++
		case delaunay.KindPole:
			pole = a
		}
	}
	idx := -1
	switch {
	case pole >= 0 && reals == 2:
		var lons []float64
		for _, a := range vs {
			if a != pole {
				lons = append(lons, g.verts[a].MeshX)
			}
		}
		lon := lons[0] + unwrap(lons[1]-lons[0])/2
		idx = g.push(g.lonLat(lon, g.verts[pole].MeshY))
	case reals < 3:
	case g.spherical:
		c := triangleCircumcenter(g.point(vs[0]), g.point(vs[1]), g.point(vs[2]))
		if c.Norm() != 0 {
			idx = g.push(g.fromPoint(s2.Point{Vector: c.Normalize()}))
		}
	default:
		p := func(a int) r2.Point { return r2.Point{X: g.verts[a].MeshX, Y: g.verts[a].MeshY} }
		if c, ok := planarCircumcenter(p(vs[0]), p(vs[1]), p(vs[2])); ok {
			idx = g.push(c)
		}
	}
	g.faceVertex[f] = idx
	return idx, idx >= 0
}

// midVertex returns the midpoint of the open side u-w.
func (g *generator) midVertex(u, w int) int {
	key := [2]int{min(u, w), max(u, w)}
	if idx, ok := g.edgeVertex[key]; ok {
		return idx
	}
	var m r2.Point
	if g.spherical {
		m = g.fromPoint(s2.Point{Vector: g.point(key[0]).Add(g.point(key[1]).Vector).Normalize()})
	} else {
		a, b := g.verts[key[0]], g.verts[key[1]]
		m = r2.Point{X: (a.MeshX + b.MeshX) / 2, Y: (a.MeshY + b.MeshY) / 2}
	}
	idx := g.push(m)
	g.edgeVertex[key] = idx
	return idx
}

func (g *generator) push(p r2.Point) int {
	g.vertices = append(g.vertices, p)
	return len(g.vertices) - 1
}

func sortCorners(cs []corner) {
	slices.SortStableFunc(cs, func(x, y corner) int {
		return cmp.Or(cmp.Compare(x.ang, y.ang), cmp.Compare(x.dist, y.dist))
	})
}

// dedupe drops corners within Eps of the previous kept one, the last one
// compared against the first too.
func (g *generator) dedupe(cs []corner) []corner {
	eps := g.opts.Eps
	same := func(x, y corner) bool {
		return math.Abs(x.p.X-y.p.X) <= eps && math.Abs(x.p.Y-y.p.Y) <= eps
	}
	out := cs[:0]
	for _, c := range cs {
		if len(out) > 0 && same(out[len(out)-1], c) {
			continue
		}
		out = append(out, c)
	}
	for len(out) > 1 && same(out[len(out)-1], out[0]) {
		out = out[:len(out)-1]
	}
	return out
}

// dropCollinear removes corners lying on the segment between their neighbours.
func dropCollinear(cs []corner) []corner {
	for removed := true; removed && len(cs) > 3; {
		removed = false
		n := len(cs)
		for i := range n {
			prev, next := cs[(i+n-1)%n].p, cs[(i+1)%n].p
			u, w := cs[i].p.Sub(prev), next.Sub(cs[i].p)
			if math.Abs(u.Cross(w)) <= collinearTol*u.Norm()*w.Norm() && u.Dot(w) > 0 {
				cs = slices.Delete(cs, i, i+1)
				removed = true
				break
			}
		}
	}
	return cs
}

// siteGap reports whether the site (the origin) lies outside or on the
// polygon and, if so, the position at which inserting it keeps the angular
// order.
func siteGap(cs []corner) (int, bool) {
	n := len(cs)
	for i := range n {
		if cs[i].p.Cross(cs[(i+1)%n].p) <= 0 {
			return i + 1, true
		}
	}
	return 0, n < 3
}
