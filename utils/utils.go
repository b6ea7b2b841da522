// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package utils provides point generators for triangulation tests and tools.

package utils

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// GenerateRandomPoints generates a vector of random points on the S2 sphere.
// The seed parameter ensures reproducibility.
func GenerateRandomPoints(cnt int, seed int64) s2.PointVector {
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	sites := make(s2.PointVector, cnt)

	for i := range cnt {
		sites[i] = s2.PointFromLatLng(s2.LatLng{
			Lat: s1.Angle((random.Float64() - 0.5) * math.Pi),
			Lng: s1.Angle((random.Float64()*2 - 1) * math.Pi),
		})
	}

	return sites
}

// LonLat converts points to longitude (X, in [0, 360)) and latitude (Y) in degrees.
func LonLat(points s2.PointVector) []r2.Point {
	out := make([]r2.Point, len(points))
	for i, p := range points {
		ll := s2.LatLngFromPoint(p)
		lon := ll.Lng.Degrees()
		if lon < 0 {
			lon += 360
		}
		out[i] = r2.Point{X: lon, Y: ll.Lat.Degrees()}
	}
	return out
}

// GenerateRandomPlanar generates cnt uniform points inside rect.
func GenerateRandomPlanar(cnt int, seed int64, rect r2.Rect) []r2.Point {
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	out := make([]r2.Point, cnt)
	size := rect.Size()
	for i := range cnt {
		out[i] = r2.Point{
			X: rect.X.Lo + random.Float64()*size.X,
			Y: rect.Y.Lo + random.Float64()*size.Y,
		}
	}
	return out
}

// GenerateGrid generates an nx by ny lattice spanning rect, both ends included,
// row by row from rect.Y.Lo.
func GenerateGrid(rect r2.Rect, nx, ny int) []r2.Point {
	if nx < 2 || ny < 2 {
		return nil
	}
	out := make([]r2.Point, 0, nx*ny)
	dx := rect.X.Length() / float64(nx-1)
	dy := rect.Y.Length() / float64(ny-1)
	for j := range ny {
		for i := range nx {
			out = append(out, r2.Point{
				X: rect.X.Lo + float64(i)*dx,
				Y: rect.Y.Lo + float64(j)*dy,
			})
		}
	}
	return out
}
