// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package decomp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/2dChan/patcc/delaunay"
	"github.com/2dChan/patcc/transport"
	"go.uber.org/zap"
)

const (
	countSize  = 4
	headerSize = 20 // int32 id + int64 length + int64 offset
)

var (
	ErrNotPublished = errors.New("decomp: partition not published")
	ErrBadWindow    = errors.New("decomp: malformed exchange window")
)

// Header locates the payload of one partition inside its owner's window.
type Header struct {
	ID     int32
	Length int64
	Offset int64
}

// Exchange publishes per-partition payloads in one window per rank and reads
// them back one-sidedly. A window holds an int32 header count, the headers
// and the payloads.
type Exchange struct {
	c      *transport.Comm
	name   string
	logger *zap.Logger

	round   int
	staged  map[int][]byte
	headers map[int][]Header // owner -> headers of the current round
}

func NewExchange(c *transport.Comm, name string, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		c:       c,
		name:    name,
		logger:  logger,
		staged:  make(map[int][]byte),
		headers: make(map[int][]Header),
	}
}

// Publish stages payload for partition id until the next Flush.
func (x *Exchange) Publish(id int, payload []byte) {
	x.staged[id] = slices.Clone(payload)
}

// Flush exposes the staged payloads and waits until every rank has done the
// same. Each flush opens a new window, so readers of an earlier round never
// observe a later one.
func (x *Exchange) Flush(ctx context.Context) error {
	ids := make([]int, 0, len(x.staged))
	for id := range x.staged {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	off := int64(countSize + headerSize*len(ids))
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(ids)))
	for _, id := range ids {
		n := int64(len(x.staged[id]))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(id)))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(off))
		off += n
	}
	for _, id := range ids {
		buf = append(buf, x.staged[id]...)
	}

	x.round++
	x.staged = make(map[int][]byte)
	x.headers = make(map[int][]Header)
	return x.c.Expose(ctx, x.window(), buf)
}

func (x *Exchange) window() string {
	return fmt.Sprintf("%s/%d", x.name, x.round)
}

// FetchHeader reads the header array of owner.
func (x *Exchange) FetchHeader(ctx context.Context, owner int) ([]Header, error) {
	if hs, ok := x.headers[owner]; ok {
		return hs, nil
	}
	size, err := x.c.WindowSize(x.window(), owner)
	if err != nil {
		return nil, err
	}
	raw, err := x.c.Get(ctx, x.window(), owner, 0, countSize)
	if err != nil {
		return nil, err
	}
	n := int64(binary.LittleEndian.Uint32(raw))
	if countSize+n*headerSize > size {
		return nil, fmt.Errorf("%w: %d headers in %d bytes on rank %d", ErrBadWindow, n, size, owner)
	}
	raw, err = x.c.Get(ctx, x.window(), owner, countSize, n*headerSize)
	if err != nil {
		return nil, err
	}
	hs := make([]Header, n)
	for i := range hs {
		r := raw[i*headerSize:]
		hs[i] = Header{
			ID:     int32(binary.LittleEndian.Uint32(r)),
			Length: int64(binary.LittleEndian.Uint64(r[4:])),
			Offset: int64(binary.LittleEndian.Uint64(r[12:])),
		}
		if h := hs[i]; h.Length < 0 || h.Offset < countSize+n*headerSize || h.Offset+h.Length > size {
			return nil, fmt.Errorf("%w: partition %d at [%d, %d) of %d bytes on rank %d",
				ErrBadWindow, h.ID, h.Offset, h.Offset+h.Length, size, owner)
		}
	}
	x.headers[owner] = hs
	return hs, nil
}

// FetchPayload reads length bytes at offset from the window of owner.
func (x *Exchange) FetchPayload(ctx context.Context, owner int, offset, length int64) ([]byte, error) {
	return x.c.Get(ctx, x.window(), owner, offset, length)
}

// Fetch returns the payload of partition id published by owner.
func (x *Exchange) Fetch(ctx context.Context, owner, id int) ([]byte, error) {
	hs, err := x.FetchHeader(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, h := range hs {
		if int(h.ID) != id {
			continue
		}
		x.logger.Debug("fetching partition",
			zap.String("window", x.name),
			zap.Int("partition", id),
			zap.Int("owner", owner),
			zap.Int64("bytes", h.Length),
		)
		return x.FetchPayload(ctx, owner, h.Offset, h.Length)
	}
	return nil, fmt.Errorf("%w: %d on rank %d", ErrNotPublished, id, owner)
}

type wirePoint struct {
	ID   int32
	X, Y float64
	Mask uint8
}

type wireVertex struct {
	ID   int32
	X, Y float64
}

// EncodePoints serializes points as raw records of an int32 id, two
// coordinates and a mask byte.
func EncodePoints(ps []delaunay.Point) ([]byte, error) {
	ws := make([]wirePoint, len(ps))
	for i, p := range ps {
		if int(int32(p.ID)) != p.ID {
			return nil, fmt.Errorf("decomp: point id %d does not fit in 32 bits", p.ID)
		}
		ws[i] = wirePoint{ID: int32(p.ID), X: p.X, Y: p.Y}
		if p.Mask {
			ws[i].Mask = 1
		}
	}
	return binary.Append(nil, binary.LittleEndian, ws)
}

func DecodePoints(raw []byte) ([]delaunay.Point, error) {
	size := binary.Size(wirePoint{})
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("decomp: point payload of %d bytes is not a multiple of %d", len(raw), size)
	}
	ws := make([]wirePoint, len(raw)/size)
	if _, err := binary.Decode(raw, binary.LittleEndian, ws); err != nil {
		return nil, fmt.Errorf("decomp: decode points: %w", err)
	}
	ps := make([]delaunay.Point, len(ws))
	for i, w := range ws {
		ps[i] = delaunay.Point{X: w.X, Y: w.Y, ID: int(w.ID), Mask: w.Mask != 0}
	}
	return ps, nil
}

// EncodeTriangles serializes triangles as three (id, x, y) vertex records
// each. The cyclic flag is recomputed on decoding.
func EncodeTriangles(ts []delaunay.ResultTriangle) ([]byte, error) {
	ws := make([]wireVertex, 0, 3*len(ts))
	for _, t := range ts {
		for _, v := range t.V {
			ws = append(ws, wireVertex{ID: int32(v.ID), X: v.X, Y: v.Y})
		}
	}
	return binary.Append(nil, binary.LittleEndian, ws)
}

func DecodeTriangles(raw []byte, spherical bool) ([]delaunay.ResultTriangle, error) {
	size := 3 * binary.Size(wireVertex{})
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("decomp: triangle payload of %d bytes is not a multiple of %d", len(raw), size)
	}
	ws := make([]wireVertex, 3*(len(raw)/size))
	if _, err := binary.Decode(raw, binary.LittleEndian, ws); err != nil {
		return nil, fmt.Errorf("decomp: decode triangles: %w", err)
	}
	ts := make([]delaunay.ResultTriangle, len(ws)/3)
	for i := range ts {
		for k := range 3 {
			w := ws[3*i+k]
			ts[i].V[k] = delaunay.ResultVertex{X: w.X, Y: w.Y, ID: int(w.ID)}
		}
		ts[i].Cyclic = spherical && cyclic(ts[i])
	}
	return ts, nil
}

func cyclic(t delaunay.ResultTriangle) bool {
	for k := range 3 {
		d := t.V[k].X - t.V[(k+1)%3].X
		if d > 180 || d < -180 {
			return true
		}
	}
	return false
}
