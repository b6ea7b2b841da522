// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package decomp

import (
	"errors"
	"fmt"
	"math"

	"github.com/2dChan/patcc/delaunay"
)

const (
	defaultMinPoleWidth = 3.0
	defaultMaxPoleWidth = 10.0
	defaultMaxSpan      = 45.0
	defaultRedundancy   = 2.0

	// Tile halos stop short of the poles; only pole caps contain them.
	maxHaloLat = 89.5
)

// Policy controls how a domain is cut into partitions. Widths and spans are
// in degrees and only apply to spherical domains.
type Policy struct {
	MinPoleWidth float64 `yaml:"min_pole_width"`
	MaxPoleWidth float64 `yaml:"max_pole_width"`
	// MaxSpan bounds the extent of a tile along either axis.
	MaxSpan float64 `yaml:"max_span"`
	// Redundancy scales down the area of a pole cap relative to a tile, as
	// every cap point is also triangulated by the tiles around it.
	Redundancy float64 `yaml:"redundancy"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinPoleWidth: defaultMinPoleWidth,
		MaxPoleWidth: defaultMaxPoleWidth,
		MaxSpan:      defaultMaxSpan,
		Redundancy:   defaultRedundancy,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.MinPoleWidth <= 0 || p.MaxPoleWidth < p.MinPoleWidth || p.MaxPoleWidth >= 90:
		return fmt.Errorf("decomp: invalid pole width range [%v, %v]", p.MinPoleWidth, p.MaxPoleWidth)
	case p.MaxSpan <= 0:
		return fmt.Errorf("decomp: max span must be positive, got %v", p.MaxSpan)
	case p.Redundancy < 1:
		return fmt.Errorf("decomp: redundancy must be at least 1, got %v", p.Redundancy)
	}
	return nil
}

// Kind tells pole caps from ordinary tiles.
type Kind int

const (
	KindTile Kind = iota
	KindNorthCap
	KindSouthCap
)

func (k Kind) String() string {
	switch k {
	case KindNorthCap:
		return "north-cap"
	case KindSouthCap:
		return "south-cap"
	}
	return "tile"
}

// Polar returns the engine hint for a partition of kind k.
func (k Kind) Polar() delaunay.Polar {
	switch k {
	case KindNorthCap:
		return delaunay.PolarNorth
	case KindSouthCap:
		return delaunay.PolarSouth
	}
	return delaunay.PolarNone
}

var ErrOutsideDomain = errors.New("decomp: point outside domain")

// Layout is the partitioning of a domain among ranks. Partition 0 is the
// north cap when there is one, followed by the south cap and the tiles in
// row-major order from the southern row.
type Layout struct {
	Domain    delaunay.Bounds
	Spherical bool
	Ranks     int

	North, South int // number of pole caps, 0 or 1
	NX, NY       int
	BandMinY     float64
	BandMaxY     float64
	XSide, YSide float64

	span float64 // longitude extent of the domain
}

// NewLayout cuts domain into pole caps and an NX by NY grid of tiles.
func NewLayout(domain delaunay.Bounds, ranks int, spherical bool, policy Policy) (*Layout, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if ranks <= 0 {
		return nil, fmt.Errorf("decomp: rank count must be positive, got %d", ranks)
	}
	if domain.MinY >= domain.MaxY || (!spherical && domain.MinX >= domain.MaxX) {
		return nil, fmt.Errorf("decomp: empty domain %+v", domain)
	}
	if spherical && (domain.MinY < -90 || domain.MaxY > 90) {
		return nil, fmt.Errorf("decomp: latitude range [%v, %v] exceeds the sphere", domain.MinY, domain.MaxY)
	}

	l := &Layout{
		Domain:    domain,
		Spherical: spherical,
		Ranks:     ranks,
		BandMinY:  domain.MinY,
		BandMaxY:  domain.MaxY,
		span:      domain.MaxX - domain.MinX,
	}
	if spherical && domain.Wraps() {
		l.span += 360
	}

	if spherical && (domain.MaxY == 90 || domain.MinY == -90) {
		area := math.Abs(sinDeg(domain.MaxY)-sinDeg(domain.MinY)) / float64(ranks) / policy.Redundancy
		capLat := 90 - math.Asin(1-area)*180/math.Pi
		width := max(min(policy.MaxPoleWidth, capLat), policy.MinPoleWidth)
		if domain.MaxY == 90 {
			l.North = 1
			l.BandMaxY = 90 - width
		}
		if domain.MinY == -90 {
			l.South = 1
			l.BandMinY = -90 + width
		}
		if l.BandMinY >= l.BandMaxY {
			return nil, fmt.Errorf("decomp: pole caps of %v degrees leave no band in [%v, %v]", width, domain.MinY, domain.MaxY)
		}
	}

	remained := max(1, ranks-l.North-l.South)
	height := l.BandMaxY - l.BandMinY
	ratio := l.span / height
	l.NY = min(max(1, int(math.Sqrt(float64(remained)/ratio))), remained)
	l.NX = remained / l.NY
	if spherical {
		if height/policy.MaxSpan > float64(l.NY) {
			l.NY = int(height/policy.MaxSpan) + 1
		}
		if l.span/policy.MaxSpan > float64(l.NX) {
			l.NX = int(l.span/policy.MaxSpan) + 1
		}
	}
	l.XSide = l.span / float64(l.NX)
	l.YSide = height / float64(l.NY)
	return l, nil
}

func (l *Layout) NumPartitions() int {
	return l.North + l.South + l.NX*l.NY
}

// Owner returns the rank that owns partition id.
func (l *Layout) Owner(id int) int {
	return id % l.Ranks
}

// Local returns the partitions owned by rank in ascending order.
func (l *Layout) Local(rank int) []int {
	var ids []int
	for id := rank; id < l.NumPartitions(); id += l.Ranks {
		ids = append(ids, id)
	}
	return ids
}

func (l *Layout) Kind(id int) Kind {
	switch {
	case id < l.North:
		return KindNorthCap
	case id < l.North+l.South:
		return KindSouthCap
	}
	return KindTile
}

// fullLon reports whether the domain closes around the globe.
func (l *Layout) fullLon() bool {
	return l.Spherical && l.Domain.MinX == 0 && l.Domain.MaxX == 360
}

// xy returns the tile indices of id. The north cap sits on row NY and the
// south cap on row -1.
func (l *Layout) xy(id int) (x, y int) {
	switch l.Kind(id) {
	case KindNorthCap:
		return 0, l.NY
	case KindSouthCap:
		return 0, -1
	}
	t := id - l.North - l.South
	return t % l.NX, t / l.NX
}

// PartitionOf classifies a point by latitude band, then by longitude bin.
func (l *Layout) PartitionOf(x, y float64) (int, error) {
	if !l.Domain.Contains(x, y) {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrOutsideDomain, x, y)
	}
	if y > l.BandMaxY && l.North > 0 {
		return 0, nil
	}
	if y < l.BandMinY && l.South > 0 {
		return l.North, nil
	}
	j := min(int((y-l.BandMinY)/l.YSide), l.NY-1)
	dx := x - l.Domain.MinX
	if dx < 0 {
		dx += 360
	}
	i := min(int(dx/l.XSide), l.NX-1)
	return l.North + l.South + max(j, 0)*l.NX + max(i, 0), nil
}

// Distance is the Chebyshev distance between two partitions in tiles. Pole
// caps are adjacent to every tile of the row next to them.
func (l *Layout) Distance(a, b int) int {
	ax, ay := l.xy(a)
	bx, by := l.xy(b)
	dy := abs(ay - by)
	if l.Kind(a) != KindTile || l.Kind(b) != KindTile {
		return dy
	}
	dx := abs(ax - bx)
	if l.fullLon() {
		dx = min(dx, l.NX-dx)
	}
	return max(dx, dy)
}

// HaloIDs returns the partitions at distance level from id.
func (l *Layout) HaloIDs(id, level int) []int {
	var ids []int
	for q := range l.NumPartitions() {
		if q != id && l.Distance(id, q) == level {
			ids = append(ids, q)
		}
	}
	return ids
}

// MaxLevel is the halo level at which id sees every partition.
func (l *Layout) MaxLevel(id int) int {
	level := 0
	for q := range l.NumPartitions() {
		level = max(level, l.Distance(id, q))
	}
	return level
}

// HaloBounds returns the box covered by id and its halo at level. Level 0 is
// the partition itself.
func (l *Layout) HaloBounds(id, level int) delaunay.Bounds {
	d := l.Domain
	lvl := float64(level)
	switch l.Kind(id) {
	case KindNorthCap:
		b := delaunay.Bounds{MinX: 0, MaxX: 360, MinY: max(d.MinY, l.BandMaxY-lvl*l.YSide), MaxY: 90}
		if level > 0 && b.MinY <= -90 {
			b.MinY = -maxHaloLat
		}
		return b
	case KindSouthCap:
		b := delaunay.Bounds{MinX: 0, MaxX: 360, MinY: -90, MaxY: min(d.MaxY, l.BandMinY+lvl*l.YSide)}
		if level > 0 && b.MaxY >= 90 {
			b.MaxY = maxHaloLat
		}
		return b
	}

	x, y := l.xy(id)
	b := delaunay.Bounds{
		MinY: max(d.MinY, l.BandMinY+float64(y-level)*l.YSide),
		MaxY: min(d.MaxY, l.BandMinY+float64(y+1+level)*l.YSide),
	}
	if l.Spherical && b.MinY <= -90 {
		b.MinY = -maxHaloLat
	}
	if l.Spherical && b.MaxY >= 90 {
		b.MaxY = maxHaloLat
	}

	switch {
	case l.fullLon():
		if 2*level+1 >= l.NX {
			b.MinX, b.MaxX = 0, 360
			break
		}
		b.MinX = float64(x-level) * l.XSide
		b.MaxX = float64(x+1+level) * l.XSide
		if b.MinX < 0 {
			b.MinX += 360
		}
		if b.MaxX > 360 {
			b.MaxX -= 360
		}
	default:
		b.MinX = max(d.MinX, d.MinX+float64(x-level)*l.XSide)
		b.MaxX = min(d.MinX+l.span, d.MinX+float64(x+1+level)*l.XSide)
		if l.Spherical {
			if b.MaxX > 360 {
				b.MaxX -= 360
			}
			if b.MinX > 360 {
				b.MinX -= 360
			}
		}
	}
	return b
}

// Segments returns the boundary that partition id shares with neighbor, as
// seen from id. Partitions that touch only at a corner share no segment.
func (l *Layout) Segments(id, neighbor int) []delaunay.Segment {
	own := l.HaloBounds(id, 0)
	other := l.HaloBounds(neighbor, 0)
	if l.Distance(id, neighbor) != 1 {
		return nil
	}
	switch l.Kind(id) {
	case KindNorthCap:
		return horizontal(other, other.MaxY)
	case KindSouthCap:
		return horizontal(other, other.MinY)
	}
	switch l.Kind(neighbor) {
	case KindNorthCap:
		return horizontal(own, own.MaxY)
	case KindSouthCap:
		return horizontal(own, own.MinY)
	}

	x, y := l.xy(id)
	nx, ny := l.xy(neighbor)
	var segs []delaunay.Segment
	switch {
	case nx == x && ny == y+1:
		segs = append(segs, horizontal(own, own.MaxY)...)
	case nx == x && ny == y-1:
		segs = append(segs, horizontal(own, own.MinY)...)
	}
	if ny == y {
		if l.left(x) == nx {
			segs = append(segs, vertical(own, own.MinX))
		}
		if l.right(x) == nx {
			segs = append(segs, vertical(own, own.MaxX))
		}
	}
	return segs
}

func (l *Layout) left(x int) int {
	if x > 0 {
		return x - 1
	}
	if l.fullLon() {
		return l.NX - 1
	}
	return -1
}

func (l *Layout) right(x int) int {
	if x < l.NX-1 {
		return x + 1
	}
	if l.fullLon() {
		return 0
	}
	return -1
}

// sides returns the four edges of b, splitting horizontal edges that wrap
// around the antimeridian.
func sides(b delaunay.Bounds) []delaunay.Segment {
	segs := horizontal(b, b.MinY)
	segs = append(segs, horizontal(b, b.MaxY)...)
	return append(segs, vertical(b, b.MinX), vertical(b, b.MaxX))
}

func horizontal(b delaunay.Bounds, y float64) []delaunay.Segment {
	if b.Wraps() {
		return []delaunay.Segment{
			{X0: b.MinX, Y0: y, X1: 360, Y1: y},
			{X0: 0, Y0: y, X1: b.MaxX, Y1: y},
		}
	}
	return []delaunay.Segment{{X0: b.MinX, Y0: y, X1: b.MaxX, Y1: y}}
}

func vertical(b delaunay.Bounds, x float64) delaunay.Segment {
	return delaunay.Segment{X0: x, Y0: b.MinY, X1: x, Y1: b.MaxY}
}

func sinDeg(d float64) float64 {
	return math.Sin(d * math.Pi / 180)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
