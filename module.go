package main

import (
	"math"
	"math/rand"
)

// Module is anything with trainable parameters. Parameters must come back in
// the same order on every call; the synchronization helpers pair parameters
// of two modules by position.
type Module interface {
	Parameters() []*Tensor
}

// Linear is a fully connected layer: y = x @ Weight + Bias.
type Linear struct {
	Weight *Tensor // (in, out)
	Bias   *Tensor // (out)
}

// NewLinear creates a layer with weights and bias drawn uniformly from
// ±1/sqrt(in).
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	l := &Linear{
		Weight: NewParameter(in, out),
		Bias:   NewParameter(out),
	}
	for _, p := range l.Parameters() {
		for i := range p.data {
			p.data[i] = (rng.Float64()*2 - 1) * bound
		}
	}
	return l
}

// Forward applies the layer to a (batch, in) input.
func (l *Linear) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.Weight), l.Bias)
}

// Parameters returns weight then bias.
func (l *Linear) Parameters() []*Tensor {
	return []*Tensor{l.Weight, l.Bias}
}

// MLP is a stack of Linear layers with ReLU between them. The last layer has
// no activation.
type MLP struct {
	Layers []*Linear
}

// NewMLP builds an MLP through the given sizes, e.g. NewMLP(rng, 2, 16, 4)
// maps 2 inputs through a 16-unit hidden layer to 4 outputs.
func NewMLP(rng *rand.Rand, sizes ...int) *MLP {
	if len(sizes) < 2 {
		panic("mlp: need at least input and output sizes")
	}
	m := &MLP{}
	for i := 0; i+1 < len(sizes); i++ {
		m.Layers = append(m.Layers, NewLinear(sizes[i], sizes[i+1], rng))
	}
	return m
}

// Forward applies every layer in order.
func (m *MLP) Forward(x *Tensor) *Tensor {
	for i, l := range m.Layers {
		x = l.Forward(x)
		if i < len(m.Layers)-1 {
			x = ReLU(x)
		}
	}
	return x
}

// Parameters returns every layer's parameters, first layer first.
func (m *MLP) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// CountParameters returns the total number of scalar parameters in m.
func CountParameters(m Module) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Size()
	}
	return total
}
