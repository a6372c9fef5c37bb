package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file defines the tensor type every training helper operates on, plus
// the element-wise and matrix operations used by the demo networks.
//
// Every operation does two things:
//   - Forward: compute the output values
//   - Record: if gradients are enabled and an input requires grad, attach a
//     tape node to the output so Backward can walk the graph later
//
// The backward math itself lives in autograd.go; the grad mode switch lives
// in grad_mode.go.
//
// Shape errors are programmer bugs and panic. Anything that can be caused by
// configuration or user input returns an error instead.
//
// ===========================================================================

var (
	// ErrShapeMismatch indicates incompatible tensor shapes for an operation.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrNotScalar is returned when Backward is called on a non-scalar tensor.
	ErrNotScalar = errors.New("tensor: backward requires a single-element tensor")

	// ErrNoGradient is returned when Backward is called on a tensor that
	// does not require grad and so has no graph to walk.
	ErrNoGradient = errors.New("tensor: backward on a tensor that does not require grad")

	// ErrGraphFreed is returned when Backward reaches a tape node whose
	// closures were already released by an earlier non-retaining backward.
	ErrGraphFreed = errors.New("tensor: computation graph already freed, use retainGraph")
)

// Tensor is a row-major multi-dimensional array of float64 values.
//
// Tensor is not safe for concurrent use.
type Tensor struct {
	data  []float64
	shape []int

	// grad is nil until a backward pass accumulates into this tensor.
	grad         []float64
	requiresGrad bool
	node         *tapeNode
}

// NewTensor creates a zero tensor with the given shape.
// Panics if shape is empty or contains non-positive dimensions.
func NewTensor(shape ...int) *Tensor {
	size := shapeSize(shape)
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		data:  make([]float64, size),
		shape: shapeCopy,
	}
}

// NewTensorFrom wraps a copy of data in a tensor of the given shape.
func NewTensorFrom(data []float64, shape ...int) *Tensor {
	t := NewTensor(shape...)
	if len(data) != len(t.data) {
		panic(fmt.Sprintf("tensor: %d values cannot fill shape %v", len(data), shape))
	}
	copy(t.data, data)
	return t
}

// NewParameter creates a zero tensor that requires grad.
func NewParameter(shape ...int) *Tensor {
	t := NewTensor(shape...)
	t.requiresGrad = true
	return t
}

// NewTensorRandN fills a new tensor with standard normal samples.
func NewTensorRandN(rng *rand.Rand, shape ...int) *Tensor {
	t := NewTensor(shape...)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

func shapeSize(shape []int) int {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}
	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}
	return size
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the underlying values. Writes through it bypass the tape.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Grad returns the accumulated gradient, or nil if none was computed.
func (t *Tensor) Grad() []float64 {
	return t.grad
}

// RequiresGrad reports whether backward passes accumulate into t.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad marks a leaf tensor as trainable.
func (t *Tensor) SetRequiresGrad(v bool) *Tensor {
	t.requiresGrad = v
	return t
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on tensor of size %d", len(t.data)))
	}
	return t.data[0]
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set sets the element at the given indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// ZeroGrad drops the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// Detach returns a tensor sharing t's values with no tape history.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{data: t.data, shape: t.Shape()}
}

// Clone creates a deep copy of the values. The copy has no history.
func (t *Tensor) Clone() *Tensor {
	return NewTensorFrom(t.data, t.shape...)
}

// String returns a short description for debugging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d, requiresGrad=%t)", t.shape, len(t.data), t.requiresGrad)
}

// ===========================================================================
// OPERATIONS
// ===========================================================================

// Add performs element-wise addition. b may also be a bias vector whose size
// equals the last dimension of a 2-D a, in which case it is added to each row.
func Add(a, b *Tensor) *Tensor {
	if shapeEqual(a.shape, b.shape) {
		out := NewTensor(a.shape...)
		for i := range a.data {
			out.data[i] = a.data[i] + b.data[i]
		}
		return record(out, []*Tensor{a, b}, func(g []float64, acc accumulator) {
			acc(a, g)
			acc(b, g)
		})
	}

	if len(a.shape) != 2 || len(b.data) != a.shape[1] {
		panic(errors.Wrapf(ErrShapeMismatch, "add %v and %v", a.shape, b.shape))
	}
	rows, cols := a.shape[0], a.shape[1]
	out := NewTensor(a.shape...)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.data[r*cols+c] = a.data[r*cols+c] + b.data[c]
		}
	}
	return record(out, []*Tensor{a, b}, func(g []float64, acc accumulator) {
		acc(a, g)
		acc(b, AddBiasBackward(g, rows, cols))
	})
}

// Sub performs element-wise subtraction: out = a - b.
func Sub(a, b *Tensor) *Tensor {
	mustSameShape("sub", a, b)
	out := NewTensor(a.shape...)
	for i := range a.data {
		out.data[i] = a.data[i] - b.data[i]
	}
	return record(out, []*Tensor{a, b}, func(g []float64, acc accumulator) {
		acc(a, g)
		acc(b, ScaleBackward(-1, g))
	})
}

// Mul performs element-wise multiplication: out = a * b.
func Mul(a, b *Tensor) *Tensor {
	mustSameShape("mul", a, b)
	out := NewTensor(a.shape...)
	for i := range a.data {
		out.data[i] = a.data[i] * b.data[i]
	}
	return record(out, []*Tensor{a, b}, func(g []float64, acc accumulator) {
		gradA, gradB := MulBackward(a.data, b.data, g)
		acc(a, gradA)
		acc(b, gradB)
	})
}

// Scale multiplies every element by a scalar.
func Scale(a *Tensor, scalar float64) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		out.data[i] = v * scalar
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, ScaleBackward(scalar, g))
	})
}

// AddScalar adds a constant to every element.
func AddScalar(a *Tensor, scalar float64) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		out.data[i] = v + scalar
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, g)
	})
}

// MatMul multiplies two 2-D tensors: (m, k) @ (k, n) -> (m, n).
func MatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[1] != b.shape[0] {
		panic(errors.Wrapf(ErrShapeMismatch, "matmul %v and %v", a.shape, b.shape))
	}
	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	out := NewTensor(m, n)
	matmulInto(out.data, a.data, b.data, m, k, n)

	return record(out, []*Tensor{a, b}, func(g []float64, acc accumulator) {
		gradA, gradB := MatMulBackward(a.data, b.data, g, m, k, n)
		acc(a, gradA)
		acc(b, gradB)
	})
}

// matmulInto uses i-k-j loop order so the inner loop walks both b and out
// contiguously.
func matmulInto(out, a, b []float64, m, k, n int) {
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			aip := a[i*k+p]
			if aip == 0 {
				continue
			}
			row := b[p*n : (p+1)*n]
			dst := out[i*n : (i+1)*n]
			for j, bv := range row {
				dst[j] += aip * bv
			}
		}
	}
}

// Exp applies e^x element-wise.
func Exp(a *Tensor) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		out.data[i] = math.Exp(v)
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, ExpBackward(out.data, g))
	})
}

// Clamp limits every element to [lo, hi].
func Clamp(a *Tensor, lo, hi float64) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		out.data[i] = math.Min(math.Max(v, lo), hi)
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, ClampBackward(a.data, g, lo, hi))
	})
}

// ReLU applies max(0, x) element-wise.
func ReLU(a *Tensor) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		if v > 0 {
			out.data[i] = v
		}
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, ReLUBackward(a.data, g))
	})
}

// Tanh applies the hyperbolic tangent element-wise.
func Tanh(a *Tensor) *Tensor {
	out := NewTensor(a.shape...)
	for i, v := range a.data {
		out.data[i] = math.Tanh(v)
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, TanhBackward(out.data, g))
	})
}

// Sum reduces all elements to a single-element tensor.
func Sum(a *Tensor) *Tensor {
	out := NewTensor(1)
	for _, v := range a.data {
		out.data[0] += v
	}
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, broadcastScalar(g[0], len(a.data)))
	})
}

// Mean reduces all elements to their average.
func Mean(a *Tensor) *Tensor {
	n := float64(len(a.data))
	out := NewTensor(1)
	for _, v := range a.data {
		out.data[0] += v
	}
	out.data[0] /= n
	return record(out, []*Tensor{a}, func(g []float64, acc accumulator) {
		acc(a, broadcastScalar(g[0]/n, len(a.data)))
	})
}

// MSELoss is the mean squared error between pred and target.
func MSELoss(pred, target *Tensor) *Tensor {
	diff := Sub(pred, target)
	return Mean(Mul(diff, diff))
}

func mustSameShape(op string, a, b *Tensor) {
	if !shapeEqual(a.shape, b.shape) {
		panic(errors.Wrapf(ErrShapeMismatch, "%s %v and %v", op, a.shape, b.shape))
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func broadcastScalar(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
