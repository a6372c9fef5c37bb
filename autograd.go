package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements automatic differentiation (autograd) for the tensor
// operations in tensor.go.
//
// THE TAPE:
//
// Each recorded operation attaches a tapeNode to its output. The node keeps
// the inputs (parents) and a closure that, given ∂L/∂out, pushes ∂L/∂input
// to each parent. Backward on a scalar loss:
//
//  1. Topologically sorts every tensor reachable through tape nodes
//  2. Seeds ∂L/∂L = 1
//  3. Walks the order in reverse, calling each node's closure
//  4. Accumulates into the grad of leaf tensors that require grad
//
// THE CHAIN RULE:
//
// Given: y = f(x) and z = g(y)
// Chain rule: ∂z/∂x = ∂z/∂y · ∂y/∂x
//
// RETAINING THE GRAPH:
//
// By default the closures are dropped after a backward pass so the saved
// activations can be collected. Passing retainGraph keeps them, which lets
// the same loss drive a second backward (e.g. two optimizers over a shared
// graph).
//
// ===========================================================================

// accumulator adds a gradient contribution for one input of an op.
type accumulator func(t *Tensor, grad []float64)

type tapeNode struct {
	parents  []*Tensor
	backward func(grad []float64, acc accumulator)
	freed    bool
}

// record attaches a tape node to out when gradients are enabled and any input
// requires grad. The op's output then requires grad as well.
func record(out *Tensor, inputs []*Tensor, backward func(grad []float64, acc accumulator)) *Tensor {
	if !IsGradEnabled() {
		return out
	}
	for _, in := range inputs {
		if in.requiresGrad {
			out.requiresGrad = true
			out.node = &tapeNode{parents: inputs, backward: backward}
			return out
		}
	}
	return out
}

// Backward computes gradients of t with respect to every leaf tensor that
// requires grad, accumulating into their Grad.
func (t *Tensor) Backward(retainGraph bool) error {
	if len(t.data) != 1 {
		return ErrNotScalar
	}
	if !t.requiresGrad {
		return ErrNoGradient
	}

	order := topoSort(t)
	for _, n := range order {
		if n.node != nil && n.node.freed {
			return ErrGraphFreed
		}
	}

	grads := map[*Tensor][]float64{t: {1}}
	acc := func(dst *Tensor, g []float64) {
		if !dst.requiresGrad {
			return
		}
		cur, ok := grads[dst]
		if !ok {
			cur = make([]float64, len(dst.data))
			grads[dst] = cur
		}
		for i, v := range g {
			cur[i] += v
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		g, ok := grads[n]
		if !ok {
			continue
		}
		if n.node == nil {
			n.AccumulateGrad(g)
			continue
		}
		n.node.backward(g, acc)
		if !retainGraph {
			n.node.backward = nil
			n.node.freed = true
		}
		delete(grads, n)
	}
	return nil
}

// AccumulateGrad adds grad into t's gradient, allocating it on first use.
func (t *Tensor) AccumulateGrad(grad []float64) {
	if t.grad == nil {
		t.grad = make([]float64, len(t.data))
	}
	for i, v := range grad {
		t.grad[i] += v
	}
}

// topoSort returns every tensor reachable from root through tape nodes,
// parents before children.
func topoSort(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := make(map[*Tensor]bool)

	type frame struct {
		t    *Tensor
		next int
	}
	stack := []frame{{t: root}}
	visited[root] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.t.node != nil && top.next < len(top.t.node.parents) {
			p := top.t.node.parents[top.next]
			top.next++
			if !visited[p] && p.requiresGrad {
				visited[p] = true
				stack = append(stack, frame{t: p})
			}
			continue
		}
		order = append(order, top.t)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Backward operations. Each takes ∂L/∂out and returns ∂L/∂input.

// MatMulBackward computes gradients for C = A @ B with A (m,k) and B (k,n):
//   - gradA = gradC @ B^T
//   - gradB = A^T @ gradC
func MatMulBackward(a, b, gradC []float64, m, k, n int) (gradA, gradB []float64) {
	gradA = make([]float64, m*k)
	gradB = make([]float64, k*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			g := gradC[i*n+j]
			if g == 0 {
				continue
			}
			for p := 0; p < k; p++ {
				gradA[i*k+p] += g * b[p*n+j]
				gradB[p*n+j] += a[i*k+p] * g
			}
		}
	}
	return gradA, gradB
}

// AddBiasBackward sums the output gradient over rows for a broadcast bias.
func AddBiasBackward(gradC []float64, rows, cols int) []float64 {
	gradB := make([]float64, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			gradB[c] += gradC[r*cols+c]
		}
	}
	return gradB
}

// MulBackward computes gradients for element-wise C = A * B.
func MulBackward(a, b, gradC []float64) (gradA, gradB []float64) {
	gradA = make([]float64, len(gradC))
	gradB = make([]float64, len(gradC))
	for i, g := range gradC {
		gradA[i] = g * b[i]
		gradB[i] = g * a[i]
	}
	return gradA, gradB
}

// ScaleBackward computes the gradient for Y = scalar * X.
func ScaleBackward(scalar float64, gradY []float64) []float64 {
	out := make([]float64, len(gradY))
	for i, g := range gradY {
		out[i] = g * scalar
	}
	return out
}

// ExpBackward uses the forward output: ∂e^x/∂x = e^x.
func ExpBackward(y, gradY []float64) []float64 {
	out := make([]float64, len(gradY))
	for i, g := range gradY {
		out[i] = g * y[i]
	}
	return out
}

// ClampBackward passes the gradient where lo <= x <= hi and blocks it
// elsewhere.
func ClampBackward(x, gradY []float64, lo, hi float64) []float64 {
	out := make([]float64, len(gradY))
	for i, g := range gradY {
		if x[i] >= lo && x[i] <= hi {
			out[i] = g
		}
	}
	return out
}

// ReLUBackward: ∂ReLU/∂x = 1 if x > 0, else 0.
func ReLUBackward(x, gradY []float64) []float64 {
	out := make([]float64, len(gradY))
	for i, g := range gradY {
		if x[i] > 0 {
			out[i] = g
		}
	}
	return out
}

// TanhBackward uses the forward output: ∂tanh/∂x = 1 - tanh²(x).
func TanhBackward(y, gradY []float64) []float64 {
	out := make([]float64, len(gradY))
	for i, g := range gradY {
		out[i] = g * (1 - y[i]*y[i])
	}
	return out
}
