// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"slices"

	"github.com/2dChan/patcc/pool"
)

// tryFast triangulates a tensor product lon/lat (or x/y) grid directly by
// splitting every cell in two. It reports false, leaving the mesh untouched,
// when the input is not such a grid.
func (t *Triangulation) tryFast() (bool, error) {
	lo, hi := t.inputs()
	n := int(hi - lo)

	xs := make(map[float64]int)
	ys := make(map[float64]int)
	for i := lo; i < hi; i++ {
		v := &t.verts[i]
		if t.spherical && (atPole(v.y, 90) || atPole(v.y, -90)) {
			return false, nil
		}
		xs[v.x] = 0
		ys[v.y] = 0
		if len(xs)*len(ys) > n {
			return false, nil
		}
	}
	nx, ny := len(xs), len(ys)
	if nx*ny != n || nx < 2 || ny < 2 {
		return false, nil
	}

	lons := sortedKeys(xs)
	lats := sortedKeys(ys)
	for i, x := range lons {
		xs[x] = i
	}
	for j, y := range lats {
		ys[y] = j
	}
	grid := make([]int32, n)
	for k := range grid {
		grid[k] = -1
	}
	for i := lo; i < hi; i++ {
		k := ys[t.verts[i].y]*nx + xs[t.verts[i].x]
		if grid[k] >= 0 {
			return false, nil
		}
		grid[k] = i
	}
	at := func(i, j int) int32 {
		return grid[j*nx+i%nx]
	}

	cols := nx - 1
	if t.wrapsGrid(lons) {
		cols = nx
	}
	var hs []pool.Handle
	add := func(a, b, c int32) error {
		h, err := t.newTriangle([3]int32{a, b, c}, noEdges)
		if err != nil {
			return err
		}
		hs = append(hs, h)
		return nil
	}
	for j := range ny - 1 {
		for i := range cols {
			a, b, c, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
			var err error
			if m := t.lowest(a, b, c, d); m == a || m == c {
				if err = add(a, b, d); err == nil {
					err = add(b, c, d)
				}
			} else {
				if err = add(a, b, c); err == nil {
					err = add(a, c, d)
				}
			}
			if err != nil {
				return false, err
			}
		}
	}

	for p := hi; p < int32(len(t.verts)); p++ {
		if t.verts[p].id != IDPole {
			continue
		}
		for i := range cols {
			var err error
			if t.verts[p].y > 0 {
				err = add(p, at(i, ny-1), at(i+1, ny-1))
			} else {
				err = add(p, at(i+1, 0), at(i, 0))
			}
			if err != nil {
				return false, err
			}
		}
	}

	if err := t.wireTwins(hs); err != nil {
		return false, err
	}
	t.fast = true
	return true, nil
}

// wrapsGrid reports whether the grid columns close around the globe.
func (t *Triangulation) wrapsGrid(lons []float64) bool {
	if !t.spherical || t.bounds.MinX != 0 || t.bounds.MaxX != 360 {
		return false
	}
	step := 0.0
	for i := 1; i < len(lons); i++ {
		step = max(step, lons[i]-lons[i-1])
	}
	gap := 360 - (lons[len(lons)-1] - lons[0])
	return gap > 0 && gap <= 2*step
}

func sortedKeys(m map[float64]int) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
