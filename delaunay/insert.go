// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"fmt"
	"math"

	"github.com/2dChan/patcc/pool"
)

var noEdges = [3]pool.Handle{pool.Nil, pool.Nil, pool.Nil}

// run inserts points until no leaf triangle holds unresolved points.
func (t *Triangulation) run() error {
	maxFlips := 16*len(t.verts) + 1024
	for len(t.stack) > 0 {
		h := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		if !t.tris.Live(h) || t.tris.Get(h).rest.head < 0 {
			continue
		}
		if err := t.insert(h, maxFlips); err != nil {
			return err
		}
	}
	return nil
}

func (t *Triangulation) insert(h pool.Handle, maxFlips int) error {
	p := t.pick(h)
	tr := t.tris.Get(h)
	loc := t.locate(tr, p)

	t.created = t.created[:0]
	t.flips = t.flips[:0]
	var err error
	switch loc.kind {
	case locVertex:
		t.alias(p, tr.v[loc.idx])
		t.stack = append(t.stack, h)
		return nil
	case locOutside:
		return t.invariantError("insert", "point lies outside the triangle holding it", p, tr.v[0], tr.v[1], tr.v[2])
	case locInside:
		err = t.splitInside(h, p)
	case locEdge:
		err = t.splitEdge(h, loc.idx, p)
	}
	if err != nil {
		return err
	}
	if err := t.legalize(p, maxFlips); err != nil {
		return err
	}
	return t.redistribute()
}

// pick removes the point nearest to the centroid of h from its list. Points
// coinciding with it are removed too and recorded as aliases of the one with
// the largest global identifier.
func (t *Triangulation) pick(h pool.Handle) int32 {
	tr := t.tris.Get(h)
	best, bestDist := int32(-1), math.Inf(1)
	for v := tr.rest.head; v >= 0; v = t.verts[v].next {
		if d := t.centroidDistance(tr, v); d < bestDist {
			best, bestDist = v, d
		}
	}

	keep := best
	var group []int32
	for v := tr.rest.head; v >= 0; v = t.verts[v].next {
		if v == best || !t.coincident(v, best) {
			continue
		}
		group = append(group, v)
		if t.preferred(v, keep) {
			keep = v
		}
	}
	t.remove(&tr.rest, best)
	for _, v := range group {
		t.remove(&tr.rest, v)
	}
	if keep != best {
		t.alias(best, keep)
	}
	for _, v := range group {
		if v != keep {
			t.alias(v, keep)
		}
	}
	return keep
}

func (t *Triangulation) preferred(a, b int32) bool {
	va, vb := &t.verts[a], &t.verts[b]
	if va.real() != vb.real() {
		return va.real()
	}
	return va.id > vb.id
}

func (t *Triangulation) splitInside(h pool.Handle, p int32) error {
	tr := *t.tris.Get(h)
	var cs [3]pool.Handle
	for k := range 3 {
		c, err := t.newTriangle(
			[3]int32{tr.v[k], tr.v[(k+1)%3], p},
			[3]pool.Handle{tr.e[k], pool.Nil, pool.Nil})
		if err != nil {
			return err
		}
		cs[k] = c
	}
	for k := range 3 {
		if err := t.link(t.tris.Get(cs[k]).e[1], t.tris.Get(cs[(k+1)%3]).e[2]); err != nil {
			return err
		}
	}
	t.retire(h, &t.pending)
	t.created = append(t.created, cs[:]...)
	t.flips = append(t.flips, tr.e[:]...)
	return nil
}

// splitEdge inserts p on side k of h and on the matching side of the twin
// triangle when there is one.
func (t *Triangulation) splitEdge(h pool.Handle, k int, p int32) error {
	tr := *t.tris.Get(h)
	a, b, c := tr.v[k], tr.v[(k+1)%3], tr.v[(k+2)%3]
	eab, ebc, eca := tr.e[k], tr.e[(k+1)%3], tr.e[(k+2)%3]
	tw := t.edges.Get(eab).twin

	t1, err := t.newTriangle([3]int32{a, p, c}, [3]pool.Handle{pool.Nil, pool.Nil, eca})
	if err != nil {
		return err
	}
	t2, err := t.newTriangle([3]int32{p, b, c}, [3]pool.Handle{pool.Nil, ebc, pool.Nil})
	if err != nil {
		return err
	}
	if err := t.link(t.tris.Get(t1).e[1], t.tris.Get(t2).e[2]); err != nil {
		return err
	}
	t.created = append(t.created, t1, t2)
	t.flips = append(t.flips, eca, ebc)

	if tw.Valid() {
		uh := t.edges.Get(tw).tri
		u := *t.tris.Get(uh)
		m := sideIndex(&u, tw)
		if m < 0 || u.v[m] != b || u.v[(m+1)%3] != a {
			return t.invariantError("splitEdge", "twin triangle does not share the split side", a, b)
		}
		d := u.v[(m+2)%3]
		ead, edb := u.e[(m+1)%3], u.e[(m+2)%3]

		u1, err := t.newTriangle([3]int32{b, p, d}, [3]pool.Handle{pool.Nil, pool.Nil, edb})
		if err != nil {
			return err
		}
		u2, err := t.newTriangle([3]int32{p, a, d}, [3]pool.Handle{pool.Nil, ead, pool.Nil})
		if err != nil {
			return err
		}
		for _, pair := range [][2]pool.Handle{
			{t.tris.Get(u1).e[1], t.tris.Get(u2).e[2]},
			{t.tris.Get(t1).e[0], t.tris.Get(u2).e[0]},
			{t.tris.Get(t2).e[0], t.tris.Get(u1).e[0]},
		} {
			if err := t.link(pair[0], pair[1]); err != nil {
				return err
			}
		}
		t.retire(uh, &t.pending)
		t.created = append(t.created, u1, u2)
		t.flips = append(t.flips, edb, ead)
	}
	t.retire(h, &t.pending)
	return nil
}

// legalize flips edges opposite p until all of them pass the empty circle test.
func (t *Triangulation) legalize(p int32, maxFlips int) error {
	flips := 0
	for len(t.flips) > 0 {
		e := t.flips[len(t.flips)-1]
		t.flips = t.flips[:len(t.flips)-1]
		if !t.edges.Live(e) {
			continue
		}
		ed := t.edges.Get(e)
		if !ed.twin.Valid() {
			continue
		}
		tr := t.tris.Get(ed.tri)
		m := sideIndex(tr, e)
		if m < 0 || tr.v[(m+2)%3] != p {
			continue
		}
		tw := t.edges.Get(ed.twin)
		u := t.tris.Get(tw.tri)
		k := u.v[(sideIndex(u, ed.twin)+2)%3]
		if t.legal(ed.head, ed.tail, p, k) {
			continue
		}
		if flips++; flips > maxFlips {
			return fmt.Errorf("%w after %d flips", ErrNotConverged, flips)
		}
		if err := t.flip(e); err != nil {
			return err
		}
	}
	return nil
}

// flip replaces the triangles (i, j, r) and (j, i, k) sharing e = i->j with
// (i, k, r) and (j, r, k).
func (t *Triangulation) flip(e pool.Handle) error {
	ed := *t.edges.Get(e)
	t1, t2 := ed.tri, t.edges.Get(ed.twin).tri
	tr1, tr2 := *t.tris.Get(t1), *t.tris.Get(t2)
	m1, m2 := sideIndex(&tr1, e), sideIndex(&tr2, ed.twin)

	i, j, r := tr1.v[m1], tr1.v[(m1+1)%3], tr1.v[(m1+2)%3]
	k := tr2.v[(m2+2)%3]
	ejr, eri := tr1.e[(m1+1)%3], tr1.e[(m1+2)%3]
	eik, ekj := tr2.e[(m2+1)%3], tr2.e[(m2+2)%3]

	a, err := t.newTriangle([3]int32{i, k, r}, [3]pool.Handle{eik, pool.Nil, eri})
	if err != nil {
		return err
	}
	b, err := t.newTriangle([3]int32{j, r, k}, [3]pool.Handle{ejr, pool.Nil, ekj})
	if err != nil {
		return err
	}
	if err := t.link(t.tris.Get(a).e[1], t.tris.Get(b).e[1]); err != nil {
		return err
	}
	t.retire(t1, &t.pending)
	t.retire(t2, &t.pending)
	t.created = append(t.created, a, b)
	t.flips = append(t.flips, eik, ekj)
	return nil
}

// redistribute hands the pending points to the triangles created by the last
// insertion and queues those that received any.
func (t *Triangulation) redistribute() error {
	for q := t.pending.head; q >= 0; {
		next := t.verts[q].next
		placed := false
		for _, c := range t.created {
			if !t.tris.Live(c) {
				continue
			}
			tr := t.tris.Get(c)
			loc := t.locate(tr, q)
			if loc.kind == locOutside {
				continue
			}
			if loc.kind == locVertex {
				t.alias(q, tr.v[loc.idx])
			} else {
				t.push(&tr.rest, q)
			}
			placed = true
			break
		}
		if !placed {
			return t.invariantError("redistribute", "point left every new triangle", q)
		}
		q = next
	}
	t.pending = emptyList
	for _, c := range t.created {
		if t.tris.Live(c) && t.tris.Get(c).rest.head >= 0 {
			t.stack = append(t.stack, c)
		}
	}
	return nil
}
