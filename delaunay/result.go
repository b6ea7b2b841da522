// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"math"
	"slices"

	"github.com/2dChan/patcc/pool"
)

const checksumMask = 0x0FFFFFFFFFFFFFFF

// ResultVertex is a triangle corner in input coordinates.
type ResultVertex struct {
	X, Y float64
	ID   int
}

// ResultTriangle is a real triangle of the finished mesh. Cyclic is set when a
// side spans more than 180 degrees of longitude, i.e. crosses the antimeridian.
type ResultTriangle struct {
	V      [3]ResultVertex
	Cyclic bool
}

// Results returns the real leaf triangles whose vertices all lie inside the
// triangulation bounds.
func (t *Triangulation) Results() []ResultTriangle {
	var out []ResultTriangle
	t.tris.Walk(func(_ pool.Handle, tr *triangle) bool {
		if tr.virtual {
			return true
		}
		var r ResultTriangle
		for k, vi := range tr.v {
			v := &t.verts[vi]
			if v.x < t.work.MinX || v.x > t.work.MaxX || v.y < t.work.MinY || v.y > t.work.MaxY {
				return true
			}
			r.V[k] = ResultVertex{X: v.ox, Y: v.oy, ID: v.id}
		}
		if t.spherical {
			for k := range 3 {
				if math.Abs(r.V[k].X-r.V[(k+1)%3].X) > cyclicThreshold {
					r.Cyclic = true
				}
			}
		}
		out = append(out, r)
		return true
	})
	return out
}

// IDs returns the vertex identifiers in ascending order.
func (r ResultTriangle) IDs() [3]int {
	ids := [3]int{r.V[0].ID, r.V[1].ID, r.V[2].ID}
	slices.Sort(ids[:])
	return ids
}

// Hash mixes the vertex identifiers of r independently of vertex order.
func (r ResultTriangle) Hash() uint64 {
	ids := r.IDs()
	a, b, c := uint64(ids[0]), uint64(ids[1]), uint64(ids[2])
	return a ^ (b << 21) ^ ((c << 42) + a + b + c + a*b*c)
}

// Segment is an axis-parallel boundary segment in lon/lat (or x/y) space.
type Segment struct {
	X0, Y0 float64
	X1, Y1 float64
}

func (s Segment) degenerate() bool {
	return s.X0 == s.X1 && s.Y0 == s.Y1
}

// Checksum sums the hashes of the triangles touching seg and scales the sum by
// their count. Two meshes that agree along seg produce the same value
// regardless of triangle order.
func Checksum(tris []ResultTriangle, seg Segment) uint64 {
	var sum, n uint64
	for _, r := range tris {
		if r.Touches(seg) {
			sum += r.Hash()
			n++
		}
	}
	return (sum * n) & checksumMask
}

// Touches reports whether r intersects seg. A cyclic triangle is tested in
// both of its unwrapped positions.
func (r ResultTriangle) Touches(seg Segment) bool {
	if seg.degenerate() || (seg.X0 != seg.X1 && seg.Y0 != seg.Y1) {
		return false
	}
	var p [3][2]float64
	for k, v := range r.V {
		p[k] = [2]float64{v.X, v.Y}
	}
	if !r.Cyclic {
		return touches(p, seg)
	}
	east, west := p, p
	for k := range 3 {
		if p[k][0] < 180 {
			east[k][0] += 360
		} else {
			west[k][0] -= 360
		}
	}
	return touches(east, seg) || touches(west, seg)
}

func touches(p [3][2]float64, seg Segment) bool {
	minX := min(p[0][0], p[1][0], p[2][0])
	maxX := max(p[0][0], p[1][0], p[2][0])
	minY := min(p[0][1], p[1][1], p[2][1])
	maxY := max(p[0][1], p[1][1], p[2][1])
	if seg.X0 == seg.X1 {
		lo, hi := min(seg.Y0, seg.Y1), max(seg.Y0, seg.Y1)
		if minX > seg.X0 || maxX < seg.X0 || maxY < lo || minY > hi {
			return false
		}
	} else {
		lo, hi := min(seg.X0, seg.X1), max(seg.X0, seg.X1)
		if minY > seg.Y0 || maxY < seg.Y0 || maxX < lo || minX > hi {
			return false
		}
	}

	s0 := [2]float64{seg.X0, seg.Y0}
	s1 := [2]float64{seg.X1, seg.Y1}
	for k := range 3 {
		a, b := p[k], p[(k+1)%3]
		if orient2(a, b, s0)*orient2(a, b, s1) <= 0 && orient2(s0, s1, a)*orient2(s0, s1, b) <= 0 {
			return true
		}
	}
	return inside2(p, s0) && inside2(p, s1)
}

func orient2(a, b, c [2]float64) float64 {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func inside2(p [3][2]float64, q [2]float64) bool {
	s0, s1, s2 := orient2(p[0], p[1], q), orient2(p[1], p[2], q), orient2(p[2], p[0], q)
	return (s0 >= 0 && s1 >= 0 && s2 >= 0) || (s0 <= 0 && s1 <= 0 && s2 <= 0)
}
