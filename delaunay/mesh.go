// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"fmt"
	"math"

	"github.com/2dChan/patcc/pool"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
)

// edge is a half-edge from head to tail owned by one triangle.
type edge struct {
	head, tail int32
	twin       pool.Handle
	next, prev pool.Handle
	tri        pool.Handle
	refs       int32
}

// plist is an intrusive list of vertices linked through vertex.next/prev.
type plist struct {
	head, tail int32
}

var emptyList = plist{head: -1, tail: -1}

type triangle struct {
	v [3]int32
	e [3]pool.Handle

	center     r3.Vector // spherical circumcenter
	cx, cy, r2 float64   // planar circumcircle

	leaf    bool
	cyclic  bool
	virtual bool

	rest plist
}

func (t *Triangulation) push(l *plist, v int32) {
	p := &t.verts[v]
	p.next = -1
	p.prev = l.tail
	if l.tail >= 0 {
		t.verts[l.tail].next = v
	} else {
		l.head = v
	}
	l.tail = v
}

func (t *Triangulation) remove(l *plist, v int32) {
	p := &t.verts[v]
	if p.prev >= 0 {
		t.verts[p.prev].next = p.next
	} else {
		l.head = p.next
	}
	if p.next >= 0 {
		t.verts[p.next].prev = p.prev
	} else {
		l.tail = p.prev
	}
	p.next, p.prev = -1, -1
}

// splice moves every vertex of src to the end of dst.
func (t *Triangulation) splice(dst, src *plist) {
	if src.head < 0 {
		return
	}
	if dst.tail >= 0 {
		t.verts[dst.tail].next = src.head
		t.verts[src.head].prev = dst.tail
	} else {
		dst.head = src.head
	}
	dst.tail = src.tail
	*src = emptyList
}

// newTriangle creates a leaf triangle over v. A valid handle in es is reused as
// the corresponding side v[k] -> v[k+1]; the other sides get new half-edges.
func (t *Triangulation) newTriangle(v [3]int32, es [3]pool.Handle) (pool.Handle, error) {
	h, err := t.tris.Alloc()
	if err != nil {
		return pool.Nil, fmt.Errorf("delaunay: allocate triangle: %w", err)
	}
	for k := range 3 {
		head, tail := v[k], v[(k+1)%3]
		if !es[k].Valid() {
			if es[k], err = t.edges.Alloc(); err != nil {
				return pool.Nil, fmt.Errorf("delaunay: allocate edge: %w", err)
			}
			e := t.edges.Get(es[k])
			e.head, e.tail, e.twin = head, tail, pool.Nil
		}
		e := t.edges.Get(es[k])
		if e.head != head || e.tail != tail {
			return pool.Nil, t.invariantError("newTriangle", "half-edge does not match triangle side", v[:]...)
		}
		e.refs++
		e.tri = h
	}
	for k := range 3 {
		e := t.edges.Get(es[k])
		e.next = es[(k+1)%3]
		e.prev = es[(k+2)%3]
	}

	tr := t.tris.Get(h)
	tr.v = v
	tr.e = es
	tr.leaf = true
	tr.rest = emptyList
	for k := range 3 {
		a, b := &t.verts[v[k]], &t.verts[v[(k+1)%3]]
		if !a.real() {
			tr.virtual = true
		}
		if t.spherical && math.Abs(a.ox-b.ox) > cyclicThreshold {
			tr.cyclic = true
		}
	}
	if val, scale := orientOf(t.spherical, &t.verts[v[0]], &t.verts[v[1]], &t.verts[v[2]]); val < -sideTol*scale {
		return pool.Nil, t.invariantError("newTriangle", "triangle is not counter-clockwise", v[:]...)
	}
	t.setCircle(tr)
	t.leaves++
	return h, nil
}

func (t *Triangulation) link(a, b pool.Handle) error {
	ea, eb := t.edges.Get(a), t.edges.Get(b)
	if ea.head != eb.tail || ea.tail != eb.head {
		return t.invariantError("link", "twin half-edges are not reversed", ea.head, ea.tail, eb.head, eb.tail)
	}
	ea.twin = b
	eb.twin = a
	return nil
}

// retire removes a leaf triangle from the mesh, moving its unresolved points to
// pending when pending is not nil.
func (t *Triangulation) retire(h pool.Handle, pending *plist) {
	tr := t.tris.Get(h)
	tr.leaf = false
	if pending != nil {
		t.splice(pending, &tr.rest)
	}
	es := tr.e
	t.tris.Release(h)
	t.leaves--
	for _, e := range es {
		t.unref(e)
	}
}

func (t *Triangulation) unref(h pool.Handle) {
	e := t.edges.Get(h)
	e.refs--
	if e.refs > 0 {
		return
	}
	if e.twin.Valid() {
		t.edges.Get(e.twin).twin = pool.Nil
	}
	t.edges.Release(h)
}

func sideIndex(tr *triangle, e pool.Handle) int {
	for k := range 3 {
		if tr.e[k] == e {
			return k
		}
	}
	return -1
}

// wireTwins links every pair of reversed half-edges among the given triangles.
func (t *Triangulation) wireTwins(hs []pool.Handle) error {
	open := make(map[[2]int32]pool.Handle, len(hs)*3/2)
	for _, h := range hs {
		tr := t.tris.Get(h)
		for _, e := range tr.e {
			ed := t.edges.Get(e)
			if tw, ok := open[[2]int32{ed.tail, ed.head}]; ok {
				if err := t.link(e, tw); err != nil {
					return err
				}
				delete(open, [2]int32{ed.tail, ed.head})
				continue
			}
			key := [2]int32{ed.head, ed.tail}
			if _, ok := open[key]; ok {
				return t.invariantError("wireTwins", "half-edge used by two triangles", ed.head, ed.tail)
			}
			open[key] = e
		}
	}
	return nil
}

// Validate checks the half-edge graph of the leaf triangles: edge ownership,
// loop closure, twin symmetry and orientation.
func (t *Triangulation) Validate() error {
	var err error
	t.tris.Walk(func(h pool.Handle, tr *triangle) bool {
		if !tr.leaf {
			err = multierr.Append(err, fmt.Errorf("triangle %d: live but not a leaf", h))
			return true
		}
		for k, e := range tr.e {
			if !t.edges.Live(e) {
				err = multierr.Append(err, fmt.Errorf("triangle %d: side %d is released", h, k))
				continue
			}
			ed := t.edges.Get(e)
			if ed.tri != h || ed.head != tr.v[k] || ed.tail != tr.v[(k+1)%3] {
				err = multierr.Append(err, fmt.Errorf("triangle %d: side %d does not belong to it", h, k))
			}
			if ed.next != tr.e[(k+1)%3] || ed.prev != tr.e[(k+2)%3] {
				err = multierr.Append(err, fmt.Errorf("triangle %d: side %d breaks the loop", h, k))
			}
			if !ed.twin.Valid() {
				continue
			}
			tw := t.edges.Get(ed.twin)
			if !t.edges.Live(ed.twin) || tw.twin != e || tw.head != ed.tail || tw.tail != ed.head {
				err = multierr.Append(err, fmt.Errorf("triangle %d: side %d has an asymmetric twin", h, k))
				continue
			}
			if !t.tris.Live(tw.tri) || !t.tris.Get(tw.tri).leaf {
				err = multierr.Append(err, fmt.Errorf("triangle %d: side %d twins a retired triangle", h, k))
			}
		}
		a, b, c := &t.verts[tr.v[0]], &t.verts[tr.v[1]], &t.verts[tr.v[2]]
		if val, scale := orientOf(t.spherical, a, b, c); val < -sideTol*scale {
			err = multierr.Append(err, t.invariantError("Validate", "triangle is not counter-clockwise", tr.v[:]...))
		}
		return true
	})
	return err
}

// IllegalEdges counts interior edges that fail the empty circle test.
func (t *Triangulation) IllegalEdges() int {
	n := 0
	t.tris.Walk(func(_ pool.Handle, tr *triangle) bool {
		for k, e := range tr.e {
			ed := t.edges.Get(e)
			if !ed.twin.Valid() || ed.twin < e {
				continue
			}
			tw := t.edges.Get(ed.twin)
			u := t.tris.Get(tw.tri)
			m := sideIndex(u, ed.twin)
			if t.inCircle(tr.v[k], tr.v[(k+1)%3], tr.v[(k+2)%3], u.v[(m+2)%3]) > 0 {
				n++
			}
		}
		return true
	})
	return n
}
