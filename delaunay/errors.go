// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package delaunay

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTooFewPoints = errors.New("delaunay: insufficient points for triangulation (minimum 3 required)")
	ErrBootstrap    = errors.New("delaunay: bootstrap rectangle cannot enclose the points")
	ErrTwoPoles     = errors.New("delaunay: a domain touching both poles requires a regular grid")
	ErrNotConverged = errors.New("delaunay: legalization did not converge")
)

// InvariantError reports a broken geometric invariant of the mesh. It carries
// the vertices involved so the failing configuration can be reproduced.
type InvariantError struct {
	Op       string
	Msg      string
	Vertices []Vertex
}

func (e *InvariantError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "delaunay: %s: %s", e.Op, e.Msg)
	for _, v := range e.Vertices {
		fmt.Fprintf(&sb, " [id=%d x=%.17g y=%.17g]", v.ID, v.X, v.Y)
	}
	return sb.String()
}

func (t *Triangulation) invariantError(op, msg string, vs ...int32) error {
	e := &InvariantError{Op: op, Msg: msg}
	for _, v := range vs {
		e.Vertices = append(e.Vertices, t.vertexView(v))
	}
	return e
}
