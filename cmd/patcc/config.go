// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/2dChan/patcc/decomp"
	"github.com/2dChan/patcc/delaunay"
	"github.com/2dChan/patcc/utils"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"gopkg.in/yaml.v3"
)

const (
	pointsRandom = "random"
	pointsGrid   = "grid"
)

// Config is the file form of a run. Flags override the values it holds.
type Config struct {
	Domain    Domain        `yaml:"domain"`
	Policy    decomp.Policy `yaml:"policy"`
	Ranks     int           `yaml:"ranks"`
	Spherical bool          `yaml:"spherical"`
	Points    Points        `yaml:"points"`
}

// Domain is a coordinate box; min_x > max_x wraps around the antimeridian.
type Domain struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

func (d Domain) Bounds() delaunay.Bounds {
	return delaunay.Bounds{MinX: d.MinX, MaxX: d.MaxX, MinY: d.MinY, MaxY: d.MaxY}
}

// Points describes a generated point set.
type Points struct {
	Kind  string `yaml:"kind"`
	Count int    `yaml:"count"`
	Seed  int64  `yaml:"seed"`
	NX    int    `yaml:"nx"`
	NY    int    `yaml:"ny"`
}

func defaultConfig() Config {
	return Config{
		Domain:    Domain{MinX: 0, MaxX: 120, MinY: -40, MaxY: 40},
		Policy:    decomp.DefaultPolicy(),
		Ranks:     4,
		Spherical: true,
		Points:    Points{Kind: pointsRandom, Count: 2000, NX: 16, NY: 16},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Ranks <= 0 {
		return fmt.Errorf("ranks must be positive, got %d", c.Ranks)
	}
	if c.Domain.MinY >= c.Domain.MaxY {
		return errors.New("domain has an empty latitude range")
	}
	if !c.Spherical && c.Domain.MinX >= c.Domain.MaxX {
		return errors.New("planar domain has an empty x range")
	}
	switch c.Points.Kind {
	case pointsRandom:
		if c.Points.Count < 3 {
			return fmt.Errorf("need at least 3 random points, got %d", c.Points.Count)
		}
	case pointsGrid:
		if c.Points.NX < 2 || c.Points.NY < 2 {
			return fmt.Errorf("grid must be at least 2x2, got %dx%d", c.Points.NX, c.Points.NY)
		}
	default:
		return fmt.Errorf("unknown point kind %q", c.Points.Kind)
	}
	return c.Policy.Validate()
}

// fullLon reports whether the domain closes around the globe.
func (c Config) fullLon() bool {
	return c.Spherical && c.Domain.MinX == 0 && c.Domain.MaxX == 360
}

// generate builds the configured point set. Identifiers are input indices.
func (c Config) generate() []delaunay.Point {
	b := c.Domain.Bounds()
	var ps []r2.Point
	switch c.Points.Kind {
	case pointsGrid:
		rect := r2.Rect{X: r1.Interval{Lo: b.MinX, Hi: b.MaxX}, Y: r1.Interval{Lo: b.MinY, Hi: b.MaxY}}
		if b.Wraps() {
			rect.X.Hi += 360
		}
		if c.fullLon() {
			// 0 and 360 are the same meridian.
			rect.X.Hi -= 360 / float64(c.Points.NX)
		}
		ps = utils.GenerateGrid(rect, c.Points.NX, c.Points.NY)
		for i := range ps {
			if ps[i].X >= 360 {
				ps[i].X -= 360
			}
		}
	case pointsRandom:
		if c.Spherical {
			// Sample the sphere uniformly and keep what falls inside.
			for seed := c.Points.Seed; len(ps) < c.Points.Count; seed++ {
				for _, p := range utils.LonLat(utils.GenerateRandomPoints(c.Points.Count, seed)) {
					if len(ps) < c.Points.Count && b.Contains(p.X, p.Y) {
						ps = append(ps, p)
					}
				}
			}
			break
		}
		rect := r2.Rect{X: r1.Interval{Lo: b.MinX, Hi: b.MaxX}, Y: r1.Interval{Lo: b.MinY, Hi: b.MaxY}}
		ps = utils.GenerateRandomPlanar(c.Points.Count, c.Points.Seed, rect)
	}

	out := make([]delaunay.Point, len(ps))
	for i, p := range ps {
		out[i] = delaunay.Point{X: p.X, Y: p.Y, ID: i}
	}
	return out
}
