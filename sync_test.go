package main

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMLPPair(seedA, seedB int64) (*MLP, *MLP) {
	a := NewMLP(rand.New(rand.NewSource(seedA)), 3, 5, 2)
	b := NewMLP(rand.New(rand.NewSource(seedB)), 3, 5, 2)
	return a, b
}

func snapshot(m Module) [][]float64 {
	var out [][]float64
	for _, p := range m.Parameters() {
		out = append(out, append([]float64(nil), p.Data()...))
	}
	return out
}

func TestHardUpdateCopiesEveryParameter(t *testing.T) {
	source, target := newTestMLPPair(1, 2)
	require.NotEqual(t, snapshot(source), snapshot(target))

	require.NoError(t, HardUpdate(source, target))
	assert.Equal(t, snapshot(source), snapshot(target))

	// The copy is by value: later changes to source do not leak.
	source.Layers[0].Weight.Data()[0] += 1
	assert.NotEqual(t, snapshot(source), snapshot(target))
}

func TestSoftUpdate(t *testing.T) {
	t.Run("tau 0 leaves target unchanged", func(t *testing.T) {
		source, target := newTestMLPPair(1, 2)
		before := snapshot(target)
		require.NoError(t, SoftUpdate(source, target, 0))
		assert.Equal(t, before, snapshot(target))
	})

	t.Run("tau 1 equals hard update", func(t *testing.T) {
		source, target := newTestMLPPair(1, 2)
		require.NoError(t, SoftUpdate(source, target, 1))
		assert.Equal(t, snapshot(source), snapshot(target))
	})

	t.Run("blends positionally", func(t *testing.T) {
		source, target := newTestMLPPair(1, 2)
		src, dst := snapshot(source), snapshot(target)

		require.NoError(t, SoftUpdate(source, target, 0.25))

		got := snapshot(target)
		for i := range got {
			for j := range got[i] {
				assert.InDelta(t, dst[i][j]*0.75+src[i][j]*0.25, got[i][j], 1e-12)
			}
		}
	})

	t.Run("records no gradient history", func(t *testing.T) {
		source, target := newTestMLPPair(1, 2)
		require.NoError(t, SoftUpdate(source, target, 0.5))
		for _, p := range target.Parameters() {
			assert.Nil(t, p.node)
			assert.Nil(t, p.Grad())
		}
	})
}

func TestSyncRejectsMismatchedModules(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	source := NewMLP(rng, 3, 5, 2)

	t.Run("count", func(t *testing.T) {
		target := NewMLP(rng, 3, 5, 5, 2)
		before := snapshot(target)
		err := HardUpdate(source, target)
		assert.True(t, errors.Is(err, ErrParameterMismatch))
		assert.Equal(t, before, snapshot(target))
	})

	t.Run("shape", func(t *testing.T) {
		target := NewMLP(rng, 3, 4, 2)
		before := snapshot(target)
		err := SoftUpdate(source, target, 0.5)
		assert.True(t, errors.Is(err, ErrParameterMismatch))
		assert.Equal(t, before, snapshot(target))
	})
}
