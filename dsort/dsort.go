// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package dsort routes records to their target rank and leaves them sorted
// by key on arrival.
//
// The exchange folds the ranks beyond the largest power of two P' onto the
// first P' ranks, bisects the power-of-two range with pairwise exchanges and
// filtered linear merges, then unfolds the records that belong to the folded
// ranks. The total record count is checked with an all-reduce.
package dsort

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/2dChan/patcc/transport"
	"go.uber.org/zap"
)

const (
	tagFold = 1 + iota
	tagBisect
	tagUnfold
)

const headerSize = 12 // int64 key + int32 target

var (
	ErrTarget       = errors.New("dsort: target rank out of range")
	ErrPayload      = errors.New("dsort: payload is not fixed-size")
	ErrConservation = errors.New("dsort: record count not conserved")
)

// Record is routed to rank Target and ordered by Key there. Payload must have
// a fixed binary size.
type Record[T any] struct {
	Key     int64
	Target  int32
	Payload T
}

type Options struct {
	Logger *zap.Logger
}

type Option func(*Options) error

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) error {
		if l == nil {
			return errors.New("WithLogger: logger must not be nil")
		}
		o.Logger = l
		return nil
	}
}

// entry is a record in wire form. route is Target mod P'.
type entry struct {
	route int
	key   int64
	raw   []byte
}

// Sort must be called by every rank of c. It returns the records of all
// ranks whose Target is the calling rank, sorted by Key. Records with equal
// keys are ordered by their encoded bytes, so the result does not depend on
// the number of ranks or the order of arrival.
func Sort[T any](ctx context.Context, c *transport.Comm, records []Record[T], setters ...Option) ([]Record[T], error) {
	opts := Options{Logger: zap.NewNop()}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}

	var zero T
	payloadSize := binary.Size(zero)
	if payloadSize < 0 {
		return nil, fmt.Errorf("%w: %T", ErrPayload, zero)
	}
	size := headerSize + payloadSize

	p := c.Size()
	p2 := 1 << (bits.Len(uint(p)) - 1)

	local := make([]entry, 0, len(records))
	for i, r := range records {
		if r.Target < 0 || int(r.Target) >= p {
			return nil, fmt.Errorf("%w: record %d targets %d of %d ranks", ErrTarget, i, r.Target, p)
		}
		raw, err := encode(r, size)
		if err != nil {
			return nil, err
		}
		local = append(local, entry{route: int(r.Target) % p2, key: r.Key, raw: raw})
	}
	slices.SortStableFunc(local, func(a, b entry) int { return a.route - b.route })

	s := sorter{c: c, size: size, p: p, p2: p2, logger: opts.Logger}
	out, err := s.run(ctx, local)
	if err != nil {
		return nil, err
	}

	result := make([]Record[T], len(out))
	for i, e := range out {
		if result[i], err = decode[T](e.raw); err != nil {
			return nil, err
		}
		if int(result[i].Target) != c.Rank() {
			return nil, fmt.Errorf("%w: record for rank %d arrived at %d", ErrTarget, result[i].Target, c.Rank())
		}
	}

	in, err := c.AllReduceSum(ctx, int64(len(records)))
	if err != nil {
		return nil, err
	}
	got, err := c.AllReduceSum(ctx, int64(len(result)))
	if err != nil {
		return nil, err
	}
	if in != got {
		return nil, fmt.Errorf("%w: %d in, %d out", ErrConservation, in, got)
	}
	return result, nil
}

type sorter struct {
	c      *transport.Comm
	size   int
	p, p2  int
	logger *zap.Logger
}

func (s *sorter) run(ctx context.Context, local []entry) ([]entry, error) {
	rank := s.c.Rank()

	// Fold.
	if rank >= s.p2 {
		if err := s.send(ctx, rank-s.p2, tagFold, local); err != nil {
			return nil, err
		}
		local = nil
	} else if rank+s.p2 < s.p {
		in, err := s.recv(ctx, rank+s.p2, tagFold)
		if err != nil {
			return nil, err
		}
		local = merge(local, in, 0, s.p2)
	}

	// Bisect.
	if rank < s.p2 {
		lo, hi := 0, s.p2
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			var partner, keepLo, keepHi int
			if rank < mid {
				partner, keepLo, keepHi = rank+(mid-lo), lo, mid
			} else {
				partner, keepLo, keepHi = rank-(mid-lo), mid, hi
			}
			keep, give := split(local, keepLo, keepHi)
			if err := s.send(ctx, partner, tagBisect, give); err != nil {
				return nil, err
			}
			in, err := s.recv(ctx, partner, tagBisect)
			if err != nil {
				return nil, err
			}
			local = merge(keep, in, keepLo, keepHi)
			lo, hi = keepLo, keepHi
		}
		s.logger.Debug("bisection done",
			zap.Int("rank", rank),
			zap.Int("records", len(local)),
		)
	}

	// Unfold.
	if rank >= s.p2 {
		in, err := s.recv(ctx, rank-s.p2, tagUnfold)
		if err != nil {
			return nil, err
		}
		local = in
	} else if rank+s.p2 < s.p {
		var own, folded []entry
		for _, e := range local {
			if target(e.raw) == rank {
				own = append(own, e)
			} else {
				folded = append(folded, e)
			}
		}
		if err := s.send(ctx, rank+s.p2, tagUnfold, folded); err != nil {
			return nil, err
		}
		local = own
	}

	slices.SortStableFunc(local, func(a, b entry) int {
		if a.key != b.key {
			if a.key < b.key {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.raw, b.raw)
	})
	return local, nil
}

func (s *sorter) send(ctx context.Context, to, tag int, es []entry) error {
	buf := make([]byte, 0, len(es)*s.size)
	for _, e := range es {
		buf = append(buf, e.raw...)
	}
	return s.c.Send(ctx, to, tag, buf)
}

func (s *sorter) recv(ctx context.Context, from, tag int) ([]entry, error) {
	buf, err := s.c.Recv(ctx, from, tag)
	if err != nil {
		return nil, err
	}
	if len(buf)%s.size != 0 {
		return nil, fmt.Errorf("dsort: message of %d bytes from rank %d is not a multiple of %d", len(buf), from, s.size)
	}
	es := make([]entry, 0, len(buf)/s.size)
	for off := 0; off < len(buf); off += s.size {
		raw := buf[off : off+s.size : off+s.size]
		es = append(es, entry{
			route: target(raw) % s.p2,
			key:   int64(binary.LittleEndian.Uint64(raw)),
			raw:   raw,
		})
	}
	return es, nil
}

// split separates the entries routed inside [lo, hi) from the rest. Both
// results keep the route order of es.
func split(es []entry, lo, hi int) (keep, give []entry) {
	for _, e := range es {
		if e.route >= lo && e.route < hi {
			keep = append(keep, e)
		} else {
			give = append(give, e)
		}
	}
	return keep, give
}

// merge is a linear merge of two route-ordered runs that drops entries
// routed outside [lo, hi).
func merge(a, b []entry, lo, hi int) []entry {
	out := make([]entry, 0, len(a)+len(b))
	in := func(e entry) bool { return e.route >= lo && e.route < hi }
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var e entry
		switch {
		case j == len(b) || (i < len(a) && a[i].route <= b[j].route):
			e = a[i]
			i++
		default:
			e = b[j]
			j++
		}
		if in(e) {
			out = append(out, e)
		}
	}
	return out
}

func target(raw []byte) int {
	return int(int32(binary.LittleEndian.Uint32(raw[8:])))
}

func encode[T any](r Record[T], size int) ([]byte, error) {
	buf := make([]byte, headerSize, size)
	binary.LittleEndian.PutUint64(buf, uint64(r.Key))
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.Target))
	buf, err := binary.Append(buf, binary.LittleEndian, r.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	return buf, nil
}

func decode[T any](raw []byte) (Record[T], error) {
	r := Record[T]{
		Key:    int64(binary.LittleEndian.Uint64(raw)),
		Target: int32(binary.LittleEndian.Uint32(raw[8:])),
	}
	if _, err := binary.Decode(raw[headerSize:], binary.LittleEndian, &r.Payload); err != nil {
		return r, fmt.Errorf("dsort: decode payload: %w", err)
	}
	return r, nil
}
