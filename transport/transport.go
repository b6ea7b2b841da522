// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package transport runs a fixed set of ranks as goroutines and connects them
// with tagged point-to-point messages, collectives and one-sided windows.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBuffer = 64

	tagReduce = -1
)

var (
	ErrRank     = errors.New("transport: rank out of range")
	ErrNoWindow = errors.New("transport: window not exposed")
	ErrWindow   = errors.New("transport: window read out of range")
)

type Options struct {
	// Buffer is the capacity of every directed link.
	Buffer int
	Logger *zap.Logger
}

type Option func(*Options) error

func WithBuffer(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return fmt.Errorf("WithBuffer: buffer must be positive, got %d", n)
		}
		o.Buffer = n
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) error {
		if l == nil {
			return errors.New("WithLogger: logger must not be nil")
		}
		o.Logger = l
		return nil
	}
}

type message struct {
	tag  int
	data []byte
}

// World is the shared state of a set of ranks.
type World struct {
	size    int
	logger  *zap.Logger
	links   [][]chan message // links[from][to]
	barrier *barrier

	mu      sync.Mutex
	windows []map[string]*window
}

func NewWorld(size int, setters ...Option) (*World, error) {
	opts := Options{
		Buffer: defaultBuffer,
		Logger: zap.NewNop(),
	}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	if size <= 0 {
		return nil, fmt.Errorf("transport: world size must be positive, got %d", size)
	}
	w := &World{
		size:    size,
		logger:  opts.Logger,
		links:   make([][]chan message, size),
		barrier: newBarrier(size),
		windows: make([]map[string]*window, size),
	}
	for from := range size {
		w.links[from] = make([]chan message, size)
		for to := range size {
			w.links[from][to] = make(chan message, opts.Buffer)
		}
		w.windows[from] = make(map[string]*window)
	}
	return w, nil
}

// Comm returns the endpoint of rank. Each rank must use its own Comm from a
// single goroutine.
func (w *World) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= w.size {
		return nil, fmt.Errorf("%w: %d of %d", ErrRank, rank, w.size)
	}
	return &Comm{rank: rank, w: w, pending: make([][]message, w.size)}, nil
}

// Run executes fn once per rank, each in its own goroutine. The first failing
// rank cancels the context of the others; the failures of all ranks are
// combined.
func Run(ctx context.Context, ranks int, fn func(ctx context.Context, c *Comm) error, setters ...Option) error {
	w, err := NewWorld(ranks, setters...)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	for r := range ranks {
		c, err := w.Comm(r)
		if err != nil {
			return err
		}
		g.Go(func() error {
			err := fn(gctx, c)
			if err == nil {
				return nil
			}
			if !errors.Is(err, context.Canceled) || ctx.Err() != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("rank %d: %w", r, err))
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if errs != nil {
			return errs
		}
		return err
	}
	return nil
}

// Comm is the endpoint of one rank.
type Comm struct {
	rank    int
	w       *World
	pending [][]message // received from each rank, not yet matched by tag
}

func (c *Comm) Rank() int {
	return c.rank
}

func (c *Comm) Size() int {
	return c.w.size
}

func (c *Comm) Logger() *zap.Logger {
	return c.w.logger
}

// Send delivers a copy of data to rank to. Messages between a pair of ranks
// arrive in the order they were sent.
func (c *Comm) Send(ctx context.Context, to, tag int, data []byte) error {
	if to < 0 || to >= c.w.size {
		return fmt.Errorf("%w: send to %d", ErrRank, to)
	}
	msg := message{tag: tag, data: append([]byte(nil), data...)}
	select {
	case c.w.links[c.rank][to] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the oldest message from rank from carrying tag. Messages with
// other tags are kept for later calls.
func (c *Comm) Recv(ctx context.Context, from, tag int) ([]byte, error) {
	if from < 0 || from >= c.w.size {
		return nil, fmt.Errorf("%w: receive from %d", ErrRank, from)
	}
	for i, m := range c.pending[from] {
		if m.tag == tag {
			c.pending[from] = append(c.pending[from][:i], c.pending[from][i+1:]...)
			return m.data, nil
		}
	}
	for {
		select {
		case m := <-c.w.links[from][c.rank]:
			if m.tag == tag {
				return m.data, nil
			}
			c.pending[from] = append(c.pending[from], m)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Barrier blocks until every rank has called it.
func (c *Comm) Barrier(ctx context.Context) error {
	return c.w.barrier.wait(ctx)
}

// AllReduceSum returns the sum of v over all ranks.
func (c *Comm) AllReduceSum(ctx context.Context, v int64) (int64, error) {
	if c.rank != 0 {
		if err := c.Send(ctx, 0, tagReduce, encodeInt64(v)); err != nil {
			return 0, err
		}
		data, err := c.Recv(ctx, 0, tagReduce)
		if err != nil {
			return 0, err
		}
		return decodeInt64(data), nil
	}
	sum := v
	for r := 1; r < c.w.size; r++ {
		data, err := c.Recv(ctx, r, tagReduce)
		if err != nil {
			return 0, err
		}
		sum += decodeInt64(data)
	}
	for r := 1; r < c.w.size; r++ {
		if err := c.Send(ctx, r, tagReduce, encodeInt64(sum)); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

type barrier struct {
	mu    sync.Mutex
	n     int
	count int
	gen   chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, gen: make(chan struct{})}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	ch := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen = make(chan struct{})
		close(ch)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
