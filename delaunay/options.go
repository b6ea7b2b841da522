// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	defaultEps      = 1e-10
	maxEps          = 1e-4
	defaultPageSize = 1 << 12
)

type TriangulationOptions struct {
	// Eps is the coincidence tolerance: unit-vector components on the sphere,
	// coordinates in the plane.
	Eps       float64
	Spherical bool
	// Kernel is the number of leading input points that need Voronoi cells.
	// A negative value means all points.
	Kernel   int
	Polar    Polar
	Fast     bool
	PageSize int
	Logger   *zap.Logger
}

type Option func(*TriangulationOptions) error

func defaultOptions() TriangulationOptions {
	return TriangulationOptions{
		Eps:      defaultEps,
		Kernel:   -1,
		Fast:     true,
		PageSize: defaultPageSize,
		Logger:   zap.NewNop(),
	}
}

func WithEps(eps float64) Option {
	return func(o *TriangulationOptions) error {
		if eps <= 0 {
			return errors.New("WithEps: eps must be positive")
		}
		if eps > maxEps {
			return fmt.Errorf("WithEps: eps %v exceeds %v", eps, maxEps)
		}
		o.Eps = eps
		return nil
	}
}

func WithSpherical(spherical bool) Option {
	return func(o *TriangulationOptions) error {
		o.Spherical = spherical
		return nil
	}
}

func WithKernel(n int) Option {
	return func(o *TriangulationOptions) error {
		if n < 0 {
			return fmt.Errorf("WithKernel: kernel size must be non-negative, got %d", n)
		}
		o.Kernel = n
		return nil
	}
}

func WithPolar(p Polar) Option {
	return func(o *TriangulationOptions) error {
		switch p {
		case PolarSouth, PolarNone, PolarNorth, PolarBoth:
			o.Polar = p
			return nil
		}
		return fmt.Errorf("WithPolar: unknown polar type %d", p)
	}
}

// WithFast enables or disables the regular grid shortcut.
func WithFast(fast bool) Option {
	return func(o *TriangulationOptions) error {
		o.Fast = fast
		return nil
	}
}

func WithPageSize(n int) Option {
	return func(o *TriangulationOptions) error {
		if n <= 0 {
			return fmt.Errorf("WithPageSize: page size must be positive, got %d", n)
		}
		o.PageSize = n
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *TriangulationOptions) error {
		if l == nil {
			return errors.New("WithLogger: logger must not be nil")
		}
		o.Logger = l
		return nil
	}
}
