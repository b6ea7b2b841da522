// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	// Relative tolerances of the orientation and incircle predicates.
	sideTol     = 1e-12
	circleTol3D = 1e-9
	circleTol2D = 1e-12
)

func orientOf(spherical bool, a, b, c *vertex) (val, scale float64) {
	if spherical {
		ab := b.v.Sub(a.v)
		ac := c.v.Sub(a.v)
		return ab.Cross(ac).Dot(a.v), ab.Norm() * ac.Norm()
	}
	abx, aby := b.x-a.x, b.y-a.y
	acx, acy := c.x-a.x, c.y-a.y
	return abx*acy - aby*acx, math.Hypot(abx, aby) * math.Hypot(acx, acy)
}

func sideOf(spherical bool, a, b, c *vertex) int {
	val, scale := orientOf(spherical, a, b, c)
	switch {
	case val > sideTol*scale:
		return 1
	case val < -sideTol*scale:
		return -1
	}
	return 0
}

// side reports whether c lies left (1) of the directed line a->b, right (-1)
// or on it (0). The result for b->a is always the exact negation.
func (t *Triangulation) side(a, b, c int32) int {
	if a > b {
		return -t.side(b, a, c)
	}
	return sideOf(t.spherical, &t.verts[a], &t.verts[b], &t.verts[c])
}

func (t *Triangulation) coincident(a, b int32) bool {
	return t.samePoint(&t.verts[a], &t.verts[b])
}

func (t *Triangulation) samePoint(p, q *vertex) bool {
	eps := t.opts.Eps
	if t.spherical {
		return scalar.EqualWithinAbs(p.v.X, q.v.X, eps) &&
			scalar.EqualWithinAbs(p.v.Y, q.v.Y, eps) &&
			scalar.EqualWithinAbs(p.v.Z, q.v.Z, eps)
	}
	return scalar.EqualWithinAbs(p.x, q.x, eps) && scalar.EqualWithinAbs(p.y, q.y, eps)
}

type locKind int

const (
	locOutside locKind = iota
	locInside
	locEdge
	locVertex
)

// location of a point relative to a triangle; idx names the side (v[idx] ->
// v[idx+1]) or the vertex involved.
type location struct {
	kind locKind
	idx  int
}

func (t *Triangulation) locate(tr *triangle, q int32) location {
	for k := range 3 {
		if t.coincident(tr.v[k], q) {
			return location{kind: locVertex, idx: k}
		}
	}
	on := -1
	for k := range 3 {
		switch t.side(tr.v[k], tr.v[(k+1)%3], q) {
		case -1:
			return location{kind: locOutside}
		case 0:
			if on < 0 {
				on = k
			}
		}
	}
	if on >= 0 {
		return location{kind: locEdge, idx: on}
	}
	return location{kind: locInside}
}

// inCircle reports whether d lies inside (1), outside (-1) or on (0) the
// circumcircle of the counter-clockwise triangle a, b, c. The value is computed
// on the points sorted by arena index, so every permutation of the same four
// points agrees on ties.
func (t *Triangulation) inCircle(a, b, c, d int32) int {
	p := [4]int32{a, b, c, d}
	sign := 1
	for i := 1; i < 4; i++ {
		for j := i; j > 0 && p[j-1] > p[j]; j-- {
			p[j-1], p[j] = p[j], p[j-1]
			sign = -sign
		}
	}

	var val, tol float64
	if t.spherical {
		o := t.verts[p[0]].v
		u := t.verts[p[1]].v.Sub(o)
		v := t.verts[p[2]].v.Sub(o)
		w := t.verts[p[3]].v.Sub(o)
		val = u.Cross(v).Dot(w)
		l := max(u.Norm2(), v.Norm2(), w.Norm2(),
			v.Sub(u).Norm2(), w.Sub(u).Norm2(), w.Sub(v).Norm2())
		tol = circleTol3D * l * l
		if math.Abs(val) <= tol {
			val, tol = planarInCircle(t.stereographic(p))
		}
	} else {
		var q [4][2]float64
		for k, i := range p {
			q[k] = [2]float64{t.verts[i].x, t.verts[i].y}
		}
		val, tol = planarInCircle(q)
	}
	if math.Abs(val) <= tol {
		return 0
	}
	if val > 0 {
		return sign
	}
	return -sign
}

// planarInCircle returns the incircle determinant of q[3] against the circle
// through q[0], q[1], q[2] and its tolerance.
func planarInCircle(q [4][2]float64) (val, tol float64) {
	var m [3][3]float64
	l := 0.0
	for k := range 3 {
		dx, dy := q[k][0]-q[3][0], q[k][1]-q[3][1]
		m[k] = [3]float64{dx, dy, dx*dx + dy*dy}
		l = max(l, m[k][2])
	}
	for k := range 3 {
		dx, dy := q[k][0]-q[(k+1)%3][0], q[k][1]-q[(k+1)%3][1]
		l = max(l, dx*dx+dy*dy)
	}
	val = m[0][0]*(m[1][1]*m[2][2]-m[2][1]*m[1][2]) -
		m[0][1]*(m[1][0]*m[2][2]-m[2][0]*m[1][2]) +
		m[0][2]*(m[1][0]*m[2][1]-m[2][0]*m[1][1])
	return val, circleTol2D * l * l
}

// stereographic projects the vertices p from the antipode of their centroid
// onto the plane tangent at the centroid. The projection maps circles to
// circles and keeps the orientation seen from outside the sphere.
func (t *Triangulation) stereographic(p [4]int32) [4][2]float64 {
	var m r3.Vector
	for _, i := range p {
		m = m.Add(t.verts[i].v)
	}
	m = m.Normalize()
	e1 := m.Ortho()
	e2 := m.Cross(e1)
	var q [4][2]float64
	for k, i := range p {
		v := t.verts[i].v
		s := 2 / (1 + v.Dot(m))
		q[k] = [2]float64{s * v.Dot(e1), s * v.Dot(e2)}
	}
	return q
}

// less orders vertices for tie-breaking: synthetic vertices by arena index
// first, then real vertices by global identifier.
func (t *Triangulation) less(a, b int32) bool {
	va, vb := &t.verts[a], &t.verts[b]
	ra, rb := va.real(), vb.real()
	if ra != rb {
		return !ra
	}
	if !ra || va.id == vb.id {
		return a < b
	}
	return va.id < vb.id
}

func (t *Triangulation) lowest(vs ...int32) int32 {
	m := vs[0]
	for _, v := range vs[1:] {
		if t.less(v, m) {
			m = v
		}
	}
	return m
}

// legal reports whether the side i->j of the triangle (i, j, r) passes the empty
// circle test against k, the apex across it. Co-circular quads keep the
// diagonal that avoids the lowest ranked of the four vertices.
func (t *Triangulation) legal(i, j, r, k int32) bool {
	switch t.inCircle(i, j, r, k) {
	case 1:
		return false
	case -1:
		return true
	}
	m := t.lowest(i, j, r, k)
	return m == r || m == k
}

// circumcenter returns the direction of the spherical circumcenter of p1, p2, p3.
func circumcenter(p1, p2, p3 r3.Vector) r3.Vector {
	v1 := p1.Sub(p2)
	v2 := p2.Sub(p3)

	c := v1.Cross(v2)

	if c.Dot(p1.Add(p2).Add(p3)) < 0 {
		c = c.Mul(-1)
	}

	return c
}

// planarCircumcenter returns the circumcenter of a, b, c and false when the
// points are collinear.
func planarCircumcenter(ax, ay, bx, by, cx, cy float64) (float64, float64, bool) {
	bx, by = bx-ax, by-ay
	cx, cy = cx-ax, cy-ay
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return 0, 0, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return ax + ux, ay + uy, true
}

func (t *Triangulation) setCircle(tr *triangle) {
	a, b, c := &t.verts[tr.v[0]], &t.verts[tr.v[1]], &t.verts[tr.v[2]]
	if t.spherical {
		tr.center = circumcenter(a.v, b.v, c.v).Normalize()
		return
	}
	x, y, ok := planarCircumcenter(a.x, a.y, b.x, b.y, c.x, c.y)
	if !ok {
		tr.cx, tr.cy, tr.r2 = math.Inf(1), math.Inf(1), math.Inf(1)
		return
	}
	tr.cx, tr.cy = x, y
	tr.r2 = (a.x-x)*(a.x-x) + (a.y-y)*(a.y-y)
}

// centroidDistance returns a monotone distance from q to the centroid of tr.
func (t *Triangulation) centroidDistance(tr *triangle, q int32) float64 {
	a, b, c := &t.verts[tr.v[0]], &t.verts[tr.v[1]], &t.verts[tr.v[2]]
	p := &t.verts[q]
	if t.spherical {
		m := a.v.Add(b.v).Add(c.v).Normalize()
		return p.v.Sub(m).Norm2()
	}
	dx := p.x - (a.x+b.x+c.x)/3
	dy := p.y - (a.y+b.y+c.y)/3
	return dx*dx + dy*dy
}
