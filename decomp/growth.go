// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package decomp

import (
	"math"

	"github.com/2dChan/patcc/delaunay"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

const boundsTol = 1e-9

// limits marks the sides of a halo box that lie on the domain boundary,
// beyond which there are no points to fetch.
type limits struct {
	minX, maxX bool
	minY, maxY bool
	fullX      bool
}

func (m *manager) limits(b delaunay.Bounds) limits {
	d := m.layout.Domain
	l := limits{
		minY: b.MinY <= d.MinY,
		maxY: b.MaxY >= d.MaxY,
	}
	switch {
	case m.layout.Spherical && b.MinX == 0 && b.MaxX == 360:
		l.fullX = true
	case !m.layout.fullLon():
		l.minX = b.MinX == d.MinX
		l.maxX = b.MaxX == d.MaxX
	}
	return l
}

// incomplete reports whether the triangulation of p may differ from the
// global one near p: a triangle at a kernel point or on the partition
// boundary has a circumcircle leaving the halo, or a kernel point lies on an
// open side of the mesh away from the domain boundary.
func (m *manager) incomplete(p *Partition, pts []delaunay.Point) bool {
	own := sides(m.layout.HaloBounds(p.ID, 0))
	lim := m.limits(p.Bounds)
	for _, r := range p.Results {
		if !p.touchesKernel(r) && !touchesAny(r, own) {
			continue
		}
		if !m.circleInside(r, p.Bounds, lim) {
			return true
		}
	}

	kernel := len(p.Points)
	for _, e := range p.Triangulation.HullEdges() {
		a, b := e[0], e[1]
		if a < 0 || b < 0 || (a >= kernel && b >= kernel) {
			continue
		}
		if !m.onDomainEdge(pts[a], pts[b]) {
			return true
		}
	}
	return false
}

func (p *Partition) touchesKernel(r delaunay.ResultTriangle) bool {
	for _, v := range r.V {
		if p.owned[v.ID] {
			return true
		}
	}
	return false
}

func touchesAny(r delaunay.ResultTriangle, segs []delaunay.Segment) bool {
	for _, seg := range segs {
		if r.Touches(seg) {
			return true
		}
	}
	return false
}

func (m *manager) onDomainEdge(a, b delaunay.Point) bool {
	d := m.layout.Domain
	if a.Y == b.Y && (a.Y == d.MinY || a.Y == d.MaxY) {
		return true
	}
	return !m.layout.fullLon() && a.X == b.X && (a.X == d.MinX || a.X == d.MaxX)
}

// circleInside reports whether the circumcircle of r stays inside b on every
// side not exempted by lim.
func (m *manager) circleInside(r delaunay.ResultTriangle, b delaunay.Bounds, lim limits) bool {
	var bottom, top float64
	if m.layout.Spherical {
		rect, ok := CircumRect(r)
		if !ok {
			return false
		}
		bottom, top = rect.Lat.Lo*180/math.Pi, rect.Lat.Hi*180/math.Pi
		if !lim.fullX {
			if rect.Lng.IsFull() {
				return false
			}
			width := b.MaxX - b.MinX
			if b.Wraps() {
				width += 360
			}
			mid := b.MinX + width/2
			lo := mid + math.Remainder(rect.Lng.Lo*180/math.Pi-mid, 360)
			hi := lo + rect.Lng.Length()*180/math.Pi
			if (!lim.minX && lo < b.MinX-boundsTol) || (!lim.maxX && hi > b.MinX+width+boundsTol) {
				return false
			}
		}
	} else {
		cx, cy, rad, ok := planarCircle(r)
		if !ok {
			return false
		}
		if (!lim.minX && cx-rad < b.MinX-boundsTol) || (!lim.maxX && cx+rad > b.MaxX+boundsTol) {
			return false
		}
		bottom, top = cy-rad, cy+rad
	}
	return (lim.minY || bottom >= b.MinY-boundsTol) && (lim.maxY || top <= b.MaxY+boundsTol)
}

// CircumRect bounds the spherical circumcircle of r in latitude and
// longitude.
func CircumRect(r delaunay.ResultTriangle) (s2.Rect, bool) {
	var p [3]r3.Vector
	for k, v := range r.V {
		p[k] = s2.PointFromLatLng(s2.LatLngFromDegrees(v.Y, v.X)).Vector
	}
	n := p[1].Sub(p[0]).Cross(p[2].Sub(p[0]))
	if n.Norm2() == 0 {
		return s2.Rect{}, false
	}
	n = n.Normalize()
	if n.Dot(p[0].Add(p[1]).Add(p[2])) < 0 {
		n = n.Mul(-1)
	}
	center := s2.Point{Vector: n}
	c := s2.CapFromCenterAngle(center, center.Distance(s2.Point{Vector: p[0]}))
	return c.RectBound(), true
}

func planarCircle(r delaunay.ResultTriangle) (cx, cy, rad float64, ok bool) {
	ax, ay := r.V[0].X, r.V[0].Y
	bx, by := r.V[1].X-ax, r.V[1].Y-ay
	qx, qy := r.V[2].X-ax, r.V[2].Y-ay
	d := 2 * (bx*qy - by*qx)
	if d == 0 {
		return 0, 0, 0, false
	}
	b2, q2 := bx*bx+by*by, qx*qx+qy*qy
	ux := (qy*b2 - by*q2) / d
	uy := (bx*q2 - qx*b2) / d
	return ax + ux, ay + uy, math.Hypot(ux, uy), true
}
