// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"github.com/2dChan/patcc/pool"
)

// prune removes the triangles touching the virtual hull and floods inward
// through degenerate triangles and obtuse hull triangles whose longest side is
// open. A real triangle stays when removing it would leave one of its real
// vertices without a triangle, or pinch the mesh at its apex. It returns the
// number of removed triangles.
func (t *Triangulation) prune() int {
	var queue []pool.Handle
	fans := make([]int32, len(t.verts)) // real leaf triangles at each vertex
	t.tris.Walk(func(h pool.Handle, tr *triangle) bool {
		switch {
		case tr.virtual:
			queue = append(queue, h)
		case tr.leaf:
			for _, v := range tr.v {
				fans[v]++
			}
		}
		return true
	})

	removed := 0
	for len(queue) > 0 {
		h := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if !t.tris.Live(h) || !t.removable(t.tris.Get(h), fans) {
			continue
		}
		tr := t.tris.Get(h)
		for _, e := range tr.e {
			if tw := t.edges.Get(e).twin; tw.Valid() {
				queue = append(queue, t.edges.Get(tw).tri)
			}
		}
		if !tr.virtual {
			for _, v := range tr.v {
				fans[v]--
			}
		}
		t.retire(h, nil)
		removed++
	}
	return removed
}

func (t *Triangulation) removable(tr *triangle, fans []int32) bool {
	for _, v := range tr.v {
		if t.verts[v].pole() {
			return false
		}
	}
	if tr.virtual {
		return true
	}
	for _, v := range tr.v {
		if t.verts[v].real() && fans[v] <= 1 {
			return false
		}
	}
	if t.collinear(tr) {
		return true
	}

	open := 0
	for _, e := range tr.e {
		if !t.edges.Get(e).twin.Valid() {
			open++
		}
	}
	if open == 0 || t.centerInside(tr) {
		return false
	}

	longest, length := 0, -1.0
	for k := range 3 {
		if d := t.sideLength(tr.v[k], tr.v[(k+1)%3]); d > length {
			longest, length = k, d
		}
	}
	if t.edges.Get(tr.e[longest]).twin.Valid() {
		return false
	}
	// The apex joins the hull only if it is not on it already.
	apex := tr.e[(longest+2)%3]
	return open > 1 || !t.onRim(apex)
}

// onRim reports whether the head of e lies on an open side of the mesh. It
// turns around the head through the triangles sharing it; a side next to a
// virtual triangle counts as open.
func (t *Triangulation) onRim(e pool.Handle) bool {
	start := e
	for range t.leaves + 1 {
		tw := t.edges.Get(t.edges.Get(e).prev).twin
		if !tw.Valid() || t.tris.Get(t.edges.Get(tw).tri).virtual {
			return true
		}
		if e = tw; e == start {
			return false
		}
	}
	return true
}

func (t *Triangulation) collinear(tr *triangle) bool {
	a, b, c := &t.verts[tr.v[0]], &t.verts[tr.v[1]], &t.verts[tr.v[2]]
	if t.spherical && ((a.x == b.x && b.x == c.x) || (a.y == b.y && b.y == c.y)) {
		return true
	}
	return sideOf(t.spherical, a, b, c) == 0
}

func (t *Triangulation) centerInside(tr *triangle) bool {
	c := vertex{x: tr.cx, y: tr.cy, v: tr.center}
	for k := range 3 {
		a, b := &t.verts[tr.v[k]], &t.verts[tr.v[(k+1)%3]]
		if sideOf(t.spherical, a, b, &c) < 0 {
			return false
		}
	}
	return true
}

func (t *Triangulation) sideLength(a, b int32) float64 {
	va, vb := &t.verts[a], &t.verts[b]
	if t.spherical {
		return va.v.Sub(vb.v).Norm2()
	}
	dx, dy := va.x-vb.x, va.y-vb.y
	return dx*dx + dy*dy
}
