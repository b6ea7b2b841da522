// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"fmt"
	"math"

	"github.com/2dChan/patcc/pool"
	"go.uber.org/zap"
)

const (
	maxSeedGrowth   = 180
	maxLonSpan      = 179.0
	marginDensities = 6
	padFraction     = 0.95
	minPadPoints    = 3
)

// extent returns the box of every non-seed vertex in working coordinates.
func (t *Triangulation) extent() (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := numSeeds; i < len(t.verts); i++ {
		v := &t.verts[i]
		minX, maxX = min(minX, v.x), max(maxX, v.x)
		minY, maxY = min(minY, v.y), max(maxY, v.y)
	}
	return minX, maxX, minY, maxY
}

func density(w, h float64, n int) float64 {
	switch {
	case w > 0 && h > 0:
		return w / math.Sqrt(w/h*float64(n))
	case w > 0 || h > 0:
		return max(w, h) / float64(n)
	}
	return 1
}

// bootstrap places the seed rectangle, pads it with virtual points and hands
// every vertex to one of the two seed triangles.
func (t *Triangulation) bootstrap() error {
	minX, maxX, minY, maxY := t.extent()
	if t.north || t.south {
		minX, maxX, minY, maxY = t.work.MinX, t.work.MaxX, t.work.MinY, t.work.MaxY
	}
	w, h := maxX-minX, maxY-minY
	d := density(w, h, len(t.verts)-numSeeds)
	delta := marginDensities * d

	if t.spherical && !t.north && !t.south {
		if w >= maxLonSpan {
			return fmt.Errorf("%w: longitude span %.6g is too wide", ErrBootstrap, w)
		}
		if w+2*delta > maxLonSpan {
			delta = (maxLonSpan - w) / 2
		}
	}

	t.placeSeeds(minX, maxX, minY, maxY, delta)
	pad := Bounds{
		MinX: minX - padFraction*delta, MaxX: maxX + padFraction*delta,
		MinY: minY - padFraction*delta, MaxY: maxY + padFraction*delta,
	}
	nx := max(int((w+2*delta)/d/2), minPadPoints)
	ny := max(int((h+2*delta)/d/2), minPadPoints)
	last := int32(len(t.verts))
	t.pad(true, nx, pad, last)
	t.pad(false, ny, pad, last)

	return t.distribute()
}

func (t *Triangulation) placeSeeds(minX, maxX, minY, maxY, delta float64) {
	switch {
	case t.north:
		lat := minY - delta
		for i, lon := range []float64{0, 90, 180, 270} {
			t.setVirtual(int32(i), lon, lat)
		}
	case t.south:
		lat := maxY + delta
		for i, lon := range []float64{180, 90, 0, 270} {
			t.setVirtual(int32(i), lon, lat)
		}
	default:
		top, bottom := maxY+delta, minY-delta
		if t.spherical {
			top, bottom = min(top, maxLat), max(bottom, -maxLat)
		}
		t.setVirtual(0, minX-delta, top)
		t.setVirtual(1, minX-delta, bottom)
		t.setVirtual(2, maxX+delta, bottom)
		t.setVirtual(3, maxX+delta, top)
	}
}

// pad buckets vertices [numSeeds, last) along one axis of b and adds a virtual
// point at both ends of every occupied bucket.
func (t *Triangulation) pad(alongX bool, n int, b Bounds, last int32) {
	lo, hi := b.MinY, b.MaxY
	if alongX {
		lo, hi = b.MinX, b.MaxX
	}
	width := (hi - lo) / float64(n)
	occupied := make([]bool, n)
	for i := int32(numSeeds); i < last; i++ {
		c := t.verts[i].y
		if alongX {
			c = t.verts[i].x
		}
		k := min(max(int((c-lo)/width), 0), n-1)
		occupied[k] = true
	}
	for k, ok := range occupied {
		if !ok {
			continue
		}
		center := lo + (float64(k)+0.5)*width
		ends := [2]float64{b.MinY, b.MaxY}
		if !alongX {
			ends = [2]float64{b.MinX, b.MaxX}
		}
		for _, end := range ends {
			x, y := center, end
			if !alongX {
				x, y = end, center
			}
			if t.spherical && (math.Abs(y) > maxLat || (t.north && y > t.work.MinY) || (t.south && y < t.work.MaxY)) {
				continue
			}
			t.addVirtual(x, y, IDVirtual)
		}
	}
}

func (t *Triangulation) seedTriangles() ([2]pool.Handle, error) {
	t.tris.Reset()
	t.edges.Reset()
	t.leaves = 0
	a, err := t.newTriangle([3]int32{0, 1, 2}, [3]pool.Handle{pool.Nil, pool.Nil, pool.Nil})
	if err != nil {
		return [2]pool.Handle{}, err
	}
	b, err := t.newTriangle([3]int32{0, 2, 3}, [3]pool.Handle{pool.Nil, pool.Nil, pool.Nil})
	if err != nil {
		return [2]pool.Handle{}, err
	}
	if err := t.link(t.tris.Get(a).e[2], t.tris.Get(b).e[0]); err != nil {
		return [2]pool.Handle{}, err
	}
	return [2]pool.Handle{a, b}, nil
}

// distribute assigns every vertex to a seed triangle, growing the seeds until
// all of them fit.
func (t *Triangulation) distribute() error {
	for iter := 0; ; iter++ {
		seeds, err := t.seedTriangles()
		if err != nil {
			return err
		}
		lost := int32(-1)
		for i := int32(numSeeds); i < int32(len(t.verts)) && lost < 0; i++ {
			placed := false
			for _, h := range seeds {
				tr := t.tris.Get(h)
				if loc := t.locate(tr, i); loc.kind == locInside || loc.kind == locEdge {
					t.push(&tr.rest, i)
					placed = true
					break
				}
			}
			if !placed {
				lost = i
			}
		}
		if lost < 0 {
			t.stack = append(t.stack[:0], seeds[0], seeds[1])
			return nil
		}
		if iter >= maxSeedGrowth || !t.growSeeds() {
			v := t.vertexView(lost)
			return fmt.Errorf("%w: point id %d at (%.10g, %.10g)", ErrBootstrap, v.ID, v.X, v.Y)
		}
		t.logger.Debug("seed rectangle grown", zap.Int("iteration", iter+1), zap.Int32("point", lost))
	}
}

// growSeeds moves the seed corners one degree outward. It reports false when
// no further growth keeps the seeds valid.
func (t *Triangulation) growSeeds() bool {
	if !t.spherical {
		return false
	}
	move := func(dy float64, idx ...int32) {
		for _, i := range idx {
			t.setVirtual(i, t.verts[i].x, t.verts[i].y+dy)
		}
	}
	switch {
	case t.north:
		if t.verts[0].y-1 <= 0 {
			return false
		}
		move(-1, 0, 1, 2, 3)
	case t.south:
		if t.verts[0].y+1 >= 0 {
			return false
		}
		move(1, 0, 1, 2, 3)
	case t.verts[0].y < 0:
		if t.verts[0].y+1 > maxLat {
			return false
		}
		move(1, 0, 3)
	case t.verts[1].y > 0:
		if t.verts[1].y-1 < -maxLat {
			return false
		}
		move(-1, 1, 2)
	default:
		return false
	}
	return true
}
