// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"gonum.org/v1/gonum/floats/scalar"
	"go.uber.org/zap"
)

func (t *Triangulation) wantsPole(lat float64) bool {
	switch t.opts.Polar {
	case PolarBoth:
		return true
	case PolarNorth:
		return lat > 0
	case PolarSouth:
		return lat < 0
	}
	return false
}

func atPole(lat, pole float64) bool {
	return scalar.EqualWithinRel(lat, pole, poleRelTol)
}

// injectPoles adds a synthetic pole to every requested cap that has no real
// point on its pole.
func (t *Triangulation) injectPoles() {
	if !t.spherical {
		return
	}
	for _, pole := range []float64{90, -90} {
		if !t.wantsPole(pole) || (pole > 0 && !t.north) || (pole < 0 && !t.south) {
			continue
		}
		found := false
		lo, hi := t.inputs()
		for i := lo; i < hi; i++ {
			if atPole(t.verts[i].y, pole) {
				found = true
				break
			}
		}
		if !found {
			t.addVirtual(0, pole, IDPole)
		}
	}
}

// nudgePoles moves several real points sitting on one pole to a shared
// latitude halfway between the pole and the nearest other point, so that
// they stop coinciding on the sphere.
func (t *Triangulation) nudgePoles() {
	if !t.spherical {
		return
	}
	for _, pole := range []float64{90, -90} {
		if (pole > 0 && !t.north) || (pole < 0 && !t.south) {
			continue
		}
		var at []int32
		nearest := -pole
		lo, hi := t.inputs()
		for i := lo; i < hi; i++ {
			y := t.verts[i].y
			switch {
			case atPole(y, pole):
				at = append(at, i)
			case pole > 0 && y > nearest, pole < 0 && y < nearest:
				nearest = y
			}
		}
		if len(at) <= 1 {
			continue
		}
		shifted := nearest + 0.5*(pole-nearest)
		for _, i := range at {
			v := &t.verts[i]
			v.y = shifted
			v.v = lonLatVector(v.x, shifted)
		}
		if t.wantsPole(pole) {
			t.addVirtual(0, pole, IDPoleFix)
		}
		t.logger.Debug("pole points nudged",
			zap.Float64("pole", pole), zap.Int("points", len(at)), zap.Float64("lat", shifted))
	}
}
