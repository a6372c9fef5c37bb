package main

import (
	"math/rand"
	"sync"
	"time"
)

// Bounds applied to log(σ) before exponentiating. exp(-4) ≈ 0.018 and
// exp(15) ≈ 3.3e6 keep σ finite for any logvar.
const (
	minLogStd = -4
	maxLogStd = 15
)

var (
	noiseMu  sync.Mutex
	noiseRNG = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// SetNoiseSeed reseeds the source Reparameterize draws ε from.
func SetNoiseSeed(seed int64) {
	noiseMu.Lock()
	noiseRNG = rand.New(rand.NewSource(seed))
	noiseMu.Unlock()
}

// Reparameterize draws z = ε·σ + μ with ε ~ N(0, 1), where
// σ = exp(clamp(0.5·logvar, -4, 15)). Gradients flow to mu and logvar
// through the closed-form transform, not through the sampling.
func Reparameterize(mu, logvar *Tensor) *Tensor {
	noiseMu.Lock()
	eps := NewTensorRandN(noiseRNG, logvar.shape...)
	noiseMu.Unlock()
	return ReparameterizeWithNoise(mu, logvar, eps)
}

// ReparameterizeWithNoise is Reparameterize with an explicit ε draw.
func ReparameterizeWithNoise(mu, logvar, eps *Tensor) *Tensor {
	logstd := Clamp(Scale(logvar, 0.5), minLogStd, maxLogStd)
	std := Exp(logstd)
	return Add(Mul(eps, std), mu)
}
