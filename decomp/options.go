// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package decomp

import (
	"errors"
	"fmt"

	"github.com/2dChan/patcc/delaunay"
	"go.uber.org/zap"
)

type Options struct {
	Logger *zap.Logger
	// MaxLevel caps halo growth below the level at which a partition sees
	// the whole domain. A negative value means no cap.
	MaxLevel int
	// Engine is passed to every partition triangulation after the options
	// the manager sets itself.
	Engine []delaunay.Option
}

type Option func(*Options) error

func defaultOptions() Options {
	return Options{
		Logger:   zap.NewNop(),
		MaxLevel: -1,
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

func WithMaxLevel(level int) Option {
	return func(o *Options) error {
		if level < 0 {
			return fmt.Errorf("WithMaxLevel: level must be non-negative, got %d", level)
		}
		o.MaxLevel = level
		return nil
	}
}

func WithEngineOptions(opts ...delaunay.Option) Option {
	return func(o *Options) error {
		o.Engine = append(o.Engine, opts...)
		return nil
	}
}
