// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package dsort

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/2dChan/patcc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type point struct {
	ID   int32
	X, Y float64
}

func TestWithLogger(t *testing.T) {
	var opts Options
	require.NoError(t, WithLogger(zap.NewNop())(&opts))
	assert.Error(t, WithLogger(nil)(&opts))
}

func TestSort_Conservation(t *testing.T) {
	for _, ranks := range []int{1, 2, 3, 4, 5, 7, 8} {
		t.Run(fmt.Sprint(ranks), func(t *testing.T) {
			input := randomRecords(ranks, 40*ranks, 1)
			out := runSort(t, ranks, input)

			var all []Record[point]
			for rank, rs := range out {
				for i, r := range rs {
					assert.EqualValues(t, rank, r.Target)
					if i > 0 {
						assert.LessOrEqual(t, rs[i-1].Key, r.Key)
					}
				}
				all = append(all, rs...)
			}

			var want []Record[point]
			for _, rs := range input {
				want = append(want, rs...)
			}
			require.Len(t, all, len(want))
			assert.ElementsMatch(t, want, all)
		})
	}
}

func TestSort_PathIndependent(t *testing.T) {
	const ranks = 5
	input := randomRecords(ranks, 120, 2)

	var flat []Record[point]
	for _, rs := range input {
		flat = append(flat, rs...)
	}
	rng := rand.New(rand.NewSource(3))
	rng.Shuffle(len(flat), func(i, j int) { flat[i], flat[j] = flat[j], flat[i] })
	regrouped := make([][]Record[point], ranks)
	for i, r := range flat {
		regrouped[(i*7)%ranks] = append(regrouped[(i*7)%ranks], r)
	}

	assert.Equal(t, runSort(t, ranks, input), runSort(t, ranks, regrouped))
}

func TestSort_EqualKeys(t *testing.T) {
	input := [][]Record[point]{
		{{Key: 1, Target: 1, Payload: point{ID: 9}}, {Key: 1, Target: 1, Payload: point{ID: 2}}},
		{{Key: 0, Target: 1, Payload: point{ID: 5}}},
	}
	out := runSort(t, 2, input)
	assert.Empty(t, out[0])
	require.Len(t, out[1], 3)
	ids := []int32{out[1][0].Payload.ID, out[1][1].Payload.ID, out[1][2].Payload.ID}
	assert.Equal(t, []int32{5, 2, 9}, ids)
}

func TestSort_Empty(t *testing.T) {
	out := runSort(t, 3, make([][]Record[point], 3))
	for _, rs := range out {
		assert.Empty(t, rs)
	}
}

func TestSort_InvalidTarget(t *testing.T) {
	err := transport.Run(context.Background(), 2, func(ctx context.Context, c *transport.Comm) error {
		rs := []Record[point]{{Key: 1, Target: int32(c.Size())}}
		_, err := Sort(ctx, c, rs)
		return err
	})
	assert.ErrorIs(t, err, ErrTarget)
}

func TestSort_VariablePayload(t *testing.T) {
	err := transport.Run(context.Background(), 1, func(ctx context.Context, c *transport.Comm) error {
		_, err := Sort(ctx, c, []Record[[]int]{{Key: 1}})
		return err
	})
	assert.ErrorIs(t, err, ErrPayload)
}

func TestMerge(t *testing.T) {
	a := []entry{{route: 0}, {route: 2}, {route: 3}}
	b := []entry{{route: 1}, {route: 2}, {route: 5}}
	got := merge(a, b, 1, 4)
	routes := make([]int, len(got))
	for i, e := range got {
		routes[i] = e.route
	}
	assert.Equal(t, []int{1, 2, 2, 3}, routes)
}

func TestSplit(t *testing.T) {
	es := []entry{{route: 0}, {route: 1}, {route: 2}, {route: 3}}
	keep, give := split(es, 2, 4)
	assert.Equal(t, es[2:], keep)
	assert.Equal(t, es[:2], give)
}

func TestEncodeDecode(t *testing.T) {
	r := Record[point]{Key: -4, Target: 3, Payload: point{ID: 11, X: 1.5, Y: -2}}
	raw, err := encode(r, headerSize+20)
	require.NoError(t, err)
	require.Len(t, raw, headerSize+20)
	assert.Equal(t, 3, target(raw))

	got, err := decode[point](raw)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

// Helpers

func randomRecords(ranks, n int, seed int64) [][]Record[point] {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]Record[point], ranks)
	for i := range n {
		r := Record[point]{
			Key:    rng.Int63n(50),
			Target: int32(rng.Intn(ranks)),
			Payload: point{
				ID: int32(i),
				X:  rng.Float64(),
				Y:  rng.Float64(),
			},
		}
		src := rng.Intn(ranks)
		out[src] = append(out[src], r)
	}
	return out
}

func runSort(t *testing.T, ranks int, input [][]Record[point]) [][]Record[point] {
	t.Helper()
	var mu sync.Mutex
	out := make([][]Record[point], ranks)
	err := transport.Run(context.Background(), ranks, func(ctx context.Context, c *transport.Comm) error {
		rs, err := Sort(ctx, c, slices.Clone(input[c.Rank()]))
		if err != nil {
			return err
		}
		mu.Lock()
		out[c.Rank()] = rs
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for _, rs := range out {
		require.True(t, slices.IsSortedFunc(rs, func(a, b Record[point]) int { return cmp.Compare(a.Key, b.Key) }))
	}
	return out
}
