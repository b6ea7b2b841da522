// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"math/rand"
	"slices"
	"testing"
)

func TestResultTriangle_Hash(t *testing.T) {
	a := ResultTriangle{V: [3]ResultVertex{{ID: 3}, {ID: 1}, {ID: 2}}}
	b := ResultTriangle{V: [3]ResultVertex{{ID: 2}, {ID: 3}, {ID: 1}}}
	if a.Hash() != b.Hash() {
		t.Errorf("Hash() = %v and %v for the same ids, want equal", a.Hash(), b.Hash())
	}
	const want = uint64(1 ^ 2<<21 ^ (3<<42 + 1 + 2 + 3 + 1*2*3))
	if got := a.Hash(); got != want {
		t.Errorf("Hash() = %v, want %v", got, want)
	}
	c := ResultTriangle{V: [3]ResultVertex{{ID: 1}, {ID: 2}, {ID: 4}}}
	if a.Hash() == c.Hash() {
		t.Errorf("Hash() collides for ids %v and %v", a.IDs(), c.IDs())
	}
}

func TestChecksum_OrderIndependent(t *testing.T) {
	points, _ := framedPoints(10, 0.5, 120, 11)
	tr := mustNewTriangulation(t, points, unitBounds(10), WithFast(false))
	res := tr.Results()

	seg := Segment{X0: 5, Y0: 0, X1: 5, Y1: 10}
	want := Checksum(res, seg)
	if want == 0 {
		t.Fatalf("Checksum(..., %v) = 0, want triangles touching the segment", seg)
	}

	shuffled := slices.Clone(res)
	//nolint:gosec
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for i := range shuffled {
		v := shuffled[i].V
		shuffled[i].V = [3]ResultVertex{v[1], v[2], v[0]}
	}
	if got := Checksum(shuffled, seg); got != want {
		t.Errorf("Checksum(shuffled, %v) = %v, want %v", seg, got, want)
	}

	if got := Checksum(res[1:], seg); got == want && res[0].Touches(seg) {
		t.Errorf("Checksum(...) unchanged after dropping a touching triangle")
	}
}

func TestResultTriangle_Touches(t *testing.T) {
	plain := ResultTriangle{V: [3]ResultVertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}}
	cyclic := ResultTriangle{
		V:      [3]ResultVertex{{X: 359, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		Cyclic: true,
	}
	tests := []struct {
		name string
		tri  ResultTriangle
		seg  Segment
		want bool
	}{
		{"vertical crossing", plain, Segment{X0: 1, Y0: -1, X1: 1, Y1: 1}, true},
		{"horizontal crossing", plain, Segment{X0: -1, Y0: 1, X1: 3, Y1: 1}, true},
		{"inside", plain, Segment{X0: 0.5, Y0: 0.2, X1: 0.5, Y1: 0.4}, true},
		{"touching vertex", plain, Segment{X0: 2, Y0: -1, X1: 2, Y1: 0}, true},
		{"beyond hypotenuse", plain, Segment{X0: 1.5, Y0: 1, X1: 1.5, Y1: 2}, false},
		{"far", plain, Segment{X0: 3, Y0: -1, X1: 3, Y1: 1}, false},
		{"diagonal segment", plain, Segment{X0: 0, Y0: 0, X1: 1, Y1: 1}, false},
		{"degenerate segment", plain, Segment{X0: 1, Y0: 1, X1: 1, Y1: 1}, false},
		{"cyclic east copy", cyclic, Segment{X0: 360, Y0: -1, X1: 360, Y1: 1}, true},
		{"cyclic west copy", cyclic, Segment{X0: 0, Y0: -1, X1: 0, Y1: 1}, true},
		{"cyclic far", cyclic, Segment{X0: 180, Y0: -1, X1: 180, Y1: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tri.Touches(tt.seg); got != tt.want {
				t.Errorf("Touches(%v) = %v, want %v", tt.seg, got, tt.want)
			}
		})
	}
}

func TestBounds_Contains(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		x, y   float64
		want   bool
	}{
		{"inside", Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}, 5, 5, true},
		{"on edge", Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}, 10, 0, true},
		{"outside", Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}, 11, 5, false},
		{"wrap east", Bounds{MinX: 350, MaxX: 10, MinY: -5, MaxY: 5}, 355, 0, true},
		{"wrap west", Bounds{MinX: 350, MaxX: 10, MinY: -5, MaxY: 5}, 3, 0, true},
		{"wrap gap", Bounds{MinX: 350, MaxX: 10, MinY: -5, MaxY: 5}, 180, 0, false},
		{"wrap latitude", Bounds{MinX: 350, MaxX: 10, MinY: -5, MaxY: 5}, 355, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bounds.Contains(tt.x, tt.y); got != tt.want {
				t.Errorf("%v.Contains(%v, %v) = %v, want %v", tt.bounds, tt.x, tt.y, got, tt.want)
			}
		})
	}
}
