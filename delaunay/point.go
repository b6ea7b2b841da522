// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// Identifiers of synthetic vertices.
const (
	IDVirtual = -1 // bounding rectangle and its padding
	IDPole    = -2 // pole injected into a cap without a real pole point
	IDPoleFix = -3 // pole added after nudging several real pole points
)

// Point is an input point. Spherical coordinates are longitude and latitude in degrees.
type Point struct {
	X, Y float64
	ID   int
	Mask bool
}

// Bounds is a coordinate box. MinX > MaxX marks a longitude range that wraps
// around the antimeridian.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

func (b Bounds) Wraps() bool {
	return b.MinX > b.MaxX
}

// Contains reports whether (x, y) lies in b, honoring longitude wrap.
func (b Bounds) Contains(x, y float64) bool {
	if y < b.MinY || y > b.MaxY {
		return false
	}
	if b.Wraps() {
		return x >= b.MinX || x <= b.MaxX
	}
	return x >= b.MinX && x <= b.MaxX
}

// Polar tags the kind of subdomain handed to the engine.
type Polar int

const (
	PolarSouth Polar = -1
	PolarNone  Polar = 0
	PolarNorth Polar = 1
	PolarBoth  Polar = 2
)

type VertexKind int

const (
	KindReal VertexKind = iota
	KindVirtual
	KindPole
)

// Vertex is a read-only view of a mesh vertex. X and Y are the original input
// coordinates, MeshX and MeshY the ones the mesh was built on (shifted by
// antimeridian wrap or pole nudging). Input is the index into the input slice
// or -1.
type Vertex struct {
	X, Y         float64
	MeshX, MeshY float64
	ID           int
	Input        int
	Kind         VertexKind
	Mask         bool
}

type vertex struct {
	x, y   float64 // working coordinates
	ox, oy float64
	v      r3.Vector
	id     int
	input  int
	mask   bool
	next   int32
	prev   int32
}

func (v *vertex) real() bool {
	return v.id >= 0 && v.input >= 0
}

func (v *vertex) pole() bool {
	return v.id == IDPole || v.id == IDPoleFix
}

func lonLatVector(lon, lat float64) r3.Vector {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)).Vector
}

func (t *Triangulation) vertexView(i int32) Vertex {
	v := &t.verts[i]
	kind := KindReal
	switch {
	case v.pole():
		kind = KindPole
	case !v.real():
		kind = KindVirtual
	}
	return Vertex{
		X: v.ox, Y: v.oy,
		MeshX: v.x, MeshY: v.y,
		ID: v.id, Input: v.input, Kind: kind, Mask: v.mask,
	}
}
