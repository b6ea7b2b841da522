// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package decomp splits a domain into partitions, routes points to the ranks
// that own them and grows a halo of neighbouring partitions around each one
// until its local triangulation agrees with the global one. Neighbours then
// compare checksums of the triangles along their shared boundaries.
package decomp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/2dChan/patcc"
	"github.com/2dChan/patcc/delaunay"
	"github.com/2dChan/patcc/dsort"
	"github.com/2dChan/patcc/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrHaloLimit        = errors.New("decomp: halo cannot grow further")
	ErrChecksumMismatch = errors.New("decomp: boundary checksum mismatch")
	ErrNoTriangulation  = errors.New("decomp: partition has no triangulation")
)

type State int

const (
	StateUnbuilt State = iota
	StateHalo
	StateStable
)

func (s State) String() string {
	switch s {
	case StateHalo:
		return "halo"
	case StateStable:
		return "stable"
	}
	return "unbuilt"
}

// Partition is a partition owned by the calling rank.
type Partition struct {
	ID    int
	Kind  Kind
	State State
	// Level is the halo level the triangulation was built at.
	Level int
	// Bounds is the halo box at Level.
	Bounds delaunay.Bounds
	// Points are the points the partition owns, ordered by id. They form
	// the kernel of the triangulation.
	Points []delaunay.Point
	// Halo lists the partitions whose points were fetched, in fetch order.
	Halo          []int
	Triangulation *delaunay.Triangulation
	Results       []delaunay.ResultTriangle

	halo  []delaunay.Point
	owned map[int]bool
}

// Owns reports whether the point with identifier id belongs to p.
func (p *Partition) Owns(id int) bool {
	return p.owned[id]
}

// Owned returns the result triangles whose lowest vertex id belongs to p.
// Across all partitions every triangle is owned exactly once.
func (p *Partition) Owned() []delaunay.ResultTriangle {
	var out []delaunay.ResultTriangle
	for _, r := range p.Results {
		if p.owned[r.IDs()[0]] {
			out = append(out, r)
		}
	}
	return out
}

// Diagram builds the Voronoi cells of the points p owns.
func (p *Partition) Diagram(setters ...patcc.Option) (*patcc.Diagram, error) {
	if p.Triangulation == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoTriangulation, p.ID)
	}
	return patcc.NewDiagram(p.Triangulation, setters...)
}

type Result struct {
	Layout     *Layout
	Partitions []*Partition
}

// Owned concatenates the owned triangles of every local partition.
func (r *Result) Owned() []delaunay.ResultTriangle {
	var out []delaunay.ResultTriangle
	for _, p := range r.Partitions {
		out = append(out, p.Owned()...)
	}
	return out
}

// routed is a point on its way to the rank owning its partition.
type routed struct {
	Partition int32
	ID        int32
	X, Y      float64
	Mask      uint8
}

type manager struct {
	c      *transport.Comm
	layout *Layout
	opts   Options
	logger *zap.Logger
}

// Run must be called by every rank of c with its share of the input points.
// It routes the points to their partitions, triangulates every local
// partition with a growing halo and verifies the boundaries against the
// neighbouring partitions.
func Run(ctx context.Context, c *transport.Comm, layout *Layout, points []delaunay.Point, setters ...Option) (*Result, error) {
	opts := defaultOptions()
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if layout.Ranks != c.Size() {
		return nil, fmt.Errorf("decomp: layout for %d ranks used with %d", layout.Ranks, c.Size())
	}
	m := &manager{
		c:      c,
		layout: layout,
		opts:   opts,
		logger: opts.Logger.With(zap.Int("rank", c.Rank())),
	}

	parts, err := m.route(ctx, points)
	if err != nil {
		return nil, err
	}

	px := NewExchange(c, "points", m.logger)
	for _, p := range parts {
		payload, err := EncodePoints(p.Points)
		if err != nil {
			return nil, err
		}
		px.Publish(p.ID, payload)
	}
	if err := px.Flush(ctx); err != nil {
		return nil, err
	}

	for _, p := range parts {
		if err := m.grow(ctx, px, p); err != nil {
			return nil, err
		}
	}

	tx := NewExchange(c, "triangles", m.logger)
	for _, p := range parts {
		payload, err := EncodeTriangles(p.Results)
		if err != nil {
			return nil, err
		}
		tx.Publish(p.ID, payload)
	}
	if err := tx.Flush(ctx); err != nil {
		return nil, err
	}
	if err := m.verify(ctx, tx, parts); err != nil {
		return nil, err
	}
	return &Result{Layout: layout, Partitions: parts}, nil
}

// route sends every point to the owner of its partition and groups the
// arrivals by partition.
func (m *manager) route(ctx context.Context, points []delaunay.Point) ([]*Partition, error) {
	records := make([]dsort.Record[routed], 0, len(points))
	for _, pt := range points {
		if pt.ID < 0 || int(int32(pt.ID)) != pt.ID {
			return nil, fmt.Errorf("decomp: point id %d out of range", pt.ID)
		}
		id, err := m.layout.PartitionOf(pt.X, pt.Y)
		if err != nil {
			return nil, err
		}
		r := routed{Partition: int32(id), ID: int32(pt.ID), X: pt.X, Y: pt.Y}
		if pt.Mask {
			r.Mask = 1
		}
		records = append(records, dsort.Record[routed]{
			Key:     int64(pt.ID),
			Target:  int32(m.layout.Owner(id)),
			Payload: r,
		})
	}
	arrived, err := dsort.Sort(ctx, m.c, records, dsort.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(arrived, func(a, b dsort.Record[routed]) int {
		return cmp.Compare(a.Payload.Partition, b.Payload.Partition)
	})

	var parts []*Partition
	index := make(map[int]*Partition)
	for _, id := range m.layout.Local(m.c.Rank()) {
		p := &Partition{
			ID:     id,
			Kind:   m.layout.Kind(id),
			Bounds: m.layout.HaloBounds(id, 0),
			owned:  make(map[int]bool),
		}
		parts = append(parts, p)
		index[id] = p
	}
	for _, r := range arrived {
		p, ok := index[int(r.Payload.Partition)]
		if !ok {
			return nil, fmt.Errorf("decomp: point %d routed to rank %d which does not own partition %d",
				r.Payload.ID, m.c.Rank(), r.Payload.Partition)
		}
		p.Points = append(p.Points, delaunay.Point{
			X: r.Payload.X, Y: r.Payload.Y, ID: int(r.Payload.ID), Mask: r.Payload.Mask != 0,
		})
		p.owned[int(r.Payload.ID)] = true
	}
	m.logger.Debug("points routed",
		zap.Int("sent", len(points)),
		zap.Int("received", len(arrived)),
		zap.Int("partitions", len(parts)),
	)
	return parts, nil
}

// grow rebuilds the triangulation of p with one more halo ring at a time
// until it is complete.
func (m *manager) grow(ctx context.Context, x *Exchange, p *Partition) error {
	if len(p.Points) == 0 {
		p.State = StateStable
		return nil
	}
	top := m.layout.MaxLevel(p.ID)
	limit := top
	if m.opts.MaxLevel >= 0 {
		limit = min(limit, m.opts.MaxLevel)
	}

	for level := 0; ; level++ {
		if level > 0 {
			if err := m.fetchHalo(ctx, x, p, level); err != nil {
				return err
			}
		}
		p.Level = level
		p.State = StateHalo
		p.Bounds = m.layout.HaloBounds(p.ID, level)
		incomplete, err := m.build(p)
		if err != nil {
			return fmt.Errorf("decomp: partition %d at level %d: %w", p.ID, level, err)
		}
		if !incomplete || (level == top && p.Triangulation != nil) {
			p.State = StateStable
			m.logger.Info("partition stable",
				zap.Int("partition", p.ID),
				zap.Int("level", level),
				zap.Int("points", len(p.Points)+len(p.halo)),
				zap.Int("triangles", len(p.Results)),
			)
			return nil
		}
		if level >= limit {
			return fmt.Errorf("%w: partition %d at level %d", ErrHaloLimit, p.ID, level)
		}
		m.logger.Info("halo grows", zap.Int("partition", p.ID), zap.Int("level", level+1))
	}
}

func (m *manager) fetchHalo(ctx context.Context, x *Exchange, p *Partition, level int) error {
	for _, q := range m.layout.HaloIDs(p.ID, level) {
		raw, err := x.Fetch(ctx, m.layout.Owner(q), q)
		if err != nil {
			return err
		}
		pts, err := DecodePoints(raw)
		if err != nil {
			return err
		}
		p.halo = append(p.halo, pts...)
		p.Halo = append(p.Halo, q)
	}
	return nil
}

// build triangulates the owned points of p and the halo points inside
// p.Bounds. It reports whether the result is still incomplete.
func (m *manager) build(p *Partition) (bool, error) {
	eb := m.engineBounds(p.Bounds)
	pts := slices.Clone(p.Points)
	for _, pt := range p.halo {
		if eb.Contains(pt.X, pt.Y) {
			pts = append(pts, pt)
		}
	}
	p.Triangulation, p.Results = nil, nil
	if len(pts) < 3 {
		return true, nil
	}

	setters := []delaunay.Option{
		delaunay.WithSpherical(m.layout.Spherical),
		delaunay.WithKernel(len(p.Points)),
		delaunay.WithPolar(p.Kind.Polar()),
		delaunay.WithLogger(m.logger),
	}
	tr, err := delaunay.NewTriangulation(pts, eb, append(setters, m.opts.Engine...)...)
	if err != nil {
		return false, err
	}
	p.Triangulation = tr
	p.Results = tr.Results()
	return m.incomplete(p, pts), nil
}

// engineBounds widens b by a rounding tolerance so that points on a
// partition edge stay inside it. A full longitude range is kept exact.
func (m *manager) engineBounds(b delaunay.Bounds) delaunay.Bounds {
	const tol = 1e-9
	if !(m.layout.Spherical && b.MinX == 0 && b.MaxX == 360) {
		b.MinX -= tol
		b.MaxX += tol
	}
	b.MinY -= tol
	b.MaxY += tol
	if m.layout.Spherical {
		b.MinY = max(b.MinY, -90)
		b.MaxY = min(b.MaxY, 90)
	}
	return b
}

// verify compares the boundary checksums of every local partition with each
// of its level 1 neighbours.
func (m *manager) verify(ctx context.Context, x *Exchange, parts []*Partition) error {
	var errs error
	for _, p := range parts {
		if len(p.Points) == 0 {
			continue
		}
		for _, q := range m.layout.HaloIDs(p.ID, 1) {
			raw, err := x.Fetch(ctx, m.layout.Owner(q), q)
			if err != nil {
				return err
			}
			remote, err := DecodeTriangles(raw, m.layout.Spherical)
			if err != nil {
				return err
			}
			if len(remote) == 0 {
				continue
			}
			errs = multierr.Append(errs, compareBoundary(p.ID, q, p.Results, remote, m.layout.Segments(p.ID, q)))
		}
	}
	if errs != nil {
		m.logger.Error("inconsistent distributed triangulation", zap.Error(errs))
	}
	return errs
}

func compareBoundary(id, neighbor int, local, remote []delaunay.ResultTriangle, segs []delaunay.Segment) error {
	var errs error
	for _, seg := range segs {
		a, b := delaunay.Checksum(local, seg), delaunay.Checksum(remote, seg)
		if a != b {
			errs = multierr.Append(errs, fmt.Errorf("%w: partitions %d and %d along (%g, %g)-(%g, %g): %#x != %#x",
				ErrChecksumMismatch, id, neighbor, seg.X0, seg.Y0, seg.X1, seg.Y1, a, b))
		}
	}
	return errs
}
