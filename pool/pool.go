// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package pool provides a page-based record allocator with free-list recycling.
// Records are addressed by handles that stay valid until released, and pointers
// returned by Get stay valid until Reset because pages are never moved.
package pool

import (
	"errors"
	"fmt"
)

const (
	defaultPageSize = 4096
)

// Handle addresses a record in a Pool.
type Handle int32

// Nil is the handle that addresses no record.
const Nil Handle = -1

// Valid reports whether h may address a record.
func (h Handle) Valid() bool {
	return h >= 0
}

// ErrExhausted is returned when a new page would exceed the configured page limit.
var ErrExhausted = errors.New("pool: page limit exhausted")

type Options struct {
	PageSize int
	MaxPages int // 0 means unlimited
}

type Option func(*Options) error

func WithPageSize(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return fmt.Errorf("pool: page size must be positive, got %d", n)
		}
		o.PageSize = n
		return nil
	}
}

func WithMaxPages(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return fmt.Errorf("pool: max pages must be non-negative, got %d", n)
		}
		o.MaxPages = n
		return nil
	}
}

// Pool stores records of type T in fixed-size pages.
type Pool[T any] struct {
	pageSize int
	maxPages int
	pages    [][]T
	live     [][]bool
	free     []Handle
	bump     int // next unused slot of the last page
	n        int
}

func New[T any](setters ...Option) (*Pool[T], error) {
	opts := Options{
		PageSize: defaultPageSize,
	}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}
	return &Pool[T]{
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		bump:     opts.PageSize,
	}, nil
}

// Alloc returns a handle to a zero-valued record.
func (p *Pool[T]) Alloc() (Handle, error) {
	if k := len(p.free); k > 0 {
		h := p.free[k-1]
		p.free = p.free[:k-1]
		var zero T
		*p.Get(h) = zero
		p.setLive(h, true)
		p.n++
		return h, nil
	}
	if p.bump == p.pageSize {
		if p.maxPages > 0 && len(p.pages) >= p.maxPages {
			return Nil, ErrExhausted
		}
		p.pages = append(p.pages, make([]T, p.pageSize))
		p.live = append(p.live, make([]bool, p.pageSize))
		p.bump = 0
	}
	h := Handle((len(p.pages)-1)*p.pageSize + p.bump)
	p.bump++
	p.setLive(h, true)
	p.n++
	return h, nil
}

// Release returns the record addressed by h to the free list.
// Releasing a handle twice panics.
func (p *Pool[T]) Release(h Handle) {
	if !p.Live(h) {
		panic(fmt.Sprintf("Release: handle %d is not live", h))
	}
	p.setLive(h, false)
	p.free = append(p.free, h)
	p.n--
}

// Get returns a pointer to the record addressed by h.
func (p *Pool[T]) Get(h Handle) *T {
	return &p.pages[int(h)/p.pageSize][int(h)%p.pageSize]
}

// Live reports whether h addresses an allocated record.
func (p *Pool[T]) Live(h Handle) bool {
	if h < 0 || int(h) >= len(p.pages)*p.pageSize {
		return false
	}
	return p.live[int(h)/p.pageSize][int(h)%p.pageSize]
}

func (p *Pool[T]) setLive(h Handle, v bool) {
	p.live[int(h)/p.pageSize][int(h)%p.pageSize] = v
}

// Len returns the number of live records.
func (p *Pool[T]) Len() int {
	return p.n
}

// Cap returns the number of records the allocated pages can hold.
func (p *Pool[T]) Cap() int {
	return len(p.pages) * p.pageSize
}

func (p *Pool[T]) Pages() int {
	return len(p.pages)
}

// Walk calls fn for every live record in handle order until fn returns false.
func (p *Pool[T]) Walk(fn func(h Handle, v *T) bool) {
	for i, page := range p.pages {
		for j := range page {
			if !p.live[i][j] {
				continue
			}
			if !fn(Handle(i*p.pageSize+j), &page[j]) {
				return
			}
		}
	}
}

// Reset drops every page. Handles and pointers obtained before Reset are invalid.
func (p *Pool[T]) Reset() {
	p.pages = nil
	p.live = nil
	p.free = nil
	p.bump = p.pageSize
	p.n = 0
}
