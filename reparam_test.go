package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReparameterizeZeroNoiseReturnsMean(t *testing.T) {
	mu := NewTensorFrom([]float64{0.5, -1.25, 3}, 1, 3)
	logvar := NewTensorFrom([]float64{0, 2, -3}, 1, 3)
	eps := NewTensor(1, 3)

	z := ReparameterizeWithNoise(mu, logvar, eps)
	assert.Equal(t, mu.Data(), z.Data())
}

func TestReparameterizeScalesNoise(t *testing.T) {
	mu := NewTensorFrom([]float64{1, 1}, 2)
	logvar := NewTensorFrom([]float64{0, 2 * math.Log(3)}, 2)
	eps := NewTensorFrom([]float64{2, -1}, 2)

	z := ReparameterizeWithNoise(mu, logvar, eps)
	assert.InDelta(t, 3.0, z.Data()[0], 1e-12)  // 2*1 + 1
	assert.InDelta(t, -2.0, z.Data()[1], 1e-12) // -1*3 + 1
}

func TestReparameterizeClampsLogStd(t *testing.T) {
	mu := NewTensor(4)
	logvar := NewTensorFrom([]float64{-1e6, -100, 100, 1e6}, 4)
	eps := NewTensorFrom([]float64{1, 1, 1, 1}, 4)

	z := ReparameterizeWithNoise(mu, logvar, eps)
	assert.InDelta(t, math.Exp(-4), z.Data()[0], 1e-15)
	assert.InDelta(t, math.Exp(-4), z.Data()[1], 1e-15)
	assert.InDelta(t, math.Exp(15), z.Data()[2], 1e-6)
	assert.InDelta(t, math.Exp(15), z.Data()[3], 1e-6)

	SetNoiseSeed(42)
	sampled := Reparameterize(mu, logvar)
	for _, v := range sampled.Data() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestReparameterizeIsDifferentiable(t *testing.T) {
	mu := NewTensorFrom([]float64{0.3}, 1).SetRequiresGrad(true)
	logvar := NewTensorFrom([]float64{0.4}, 1).SetRequiresGrad(true)
	eps := NewTensorFrom([]float64{1.5}, 1)

	z := ReparameterizeWithNoise(mu, logvar, eps)
	require.NoError(t, Sum(z).Backward(false))

	// dz/dmu = 1, dz/dlogvar = eps * 0.5 * exp(0.5*logvar)
	assert.InDelta(t, 1.0, mu.Grad()[0], 1e-12)
	assert.InDelta(t, 1.5*0.5*math.Exp(0.2), logvar.Grad()[0], 1e-12)
}

func TestReparameterizeSeeded(t *testing.T) {
	mu := NewTensor(2, 3)
	logvar := NewTensor(2, 3)

	SetNoiseSeed(9)
	a := Reparameterize(mu, logvar)
	SetNoiseSeed(9)
	b := Reparameterize(mu, logvar)

	assert.Equal(t, a.Data(), b.Data())
	assert.Equal(t, []int{2, 3}, a.Shape())
}
