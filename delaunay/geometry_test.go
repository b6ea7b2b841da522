// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestInCircle_Spherical(t *testing.T) {
	const rho = 0.01
	tests := []struct {
		name   string
		radius float64
		want   int
	}{
		{"inside", rho * 0.9, 1},
		{"outside", rho * 1.1, -1},
		{"on", rho, 0},
		// Both differ from the circle by less than the volume tolerance.
		{"barely inside", rho * (1 - 1e-10), 1},
		{"barely outside", rho * (1 + 1e-10), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Triangulation{spherical: true, verts: []vertex{
				{v: capPoint(rho, 0)},
				{v: capPoint(rho, 120)},
				{v: capPoint(rho, 240)},
				{v: capPoint(tt.radius, 60)},
			}}
			for _, abc := range [][3]int32{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}} {
				if got := tr.inCircle(abc[0], abc[1], abc[2], 3); got != tt.want {
					t.Errorf("inCircle(%v, 3) = %d, want %d", abc, got, tt.want)
				}
			}
		})
	}
}

func TestPlanarInCircle(t *testing.T) {
	tests := []struct {
		name string
		d    [2]float64
		want float64
	}{
		{"inside", [2]float64{0.5, 0.5}, 1},
		{"outside", [2]float64{2, 2}, -1},
		{"on", [2]float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, tol := planarInCircle([4][2]float64{{0, 0}, {1, 0}, {0, 1}, tt.d})
			got := 0.0
			if math.Abs(val) > tol {
				got = math.Copysign(1, val)
			}
			if got != tt.want {
				t.Errorf("planarInCircle(..., %v) sign = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

// Helpers

// capPoint returns the unit vector at angular distance rho from the x axis,
// at bearing deg counter-clockwise as seen from outside the sphere.
func capPoint(rho, deg float64) r3.Vector {
	s, c := math.Sincos(deg * math.Pi / 180)
	sr, cr := math.Sincos(rho)
	return r3.Vector{X: cr, Y: sr * c, Z: sr * s}
}
