package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file holds the optimization side of training: the Adam optimizer, a
// multi-step learning rate schedule, and global-norm gradient clipping.
//
// Optimizers are bound to their parameters at construction, so a training
// step is just:
//
//	opt.ZeroGrad()
//	loss.Backward(false)
//	opt.Step()
//
// Adam combines:
//   - Momentum (moving average of gradients)
//   - RMSProp (moving average of squared gradients)
//   - Bias correction (accounts for initialization at zero)
//
// Update rule:
//   grad = grad + weightDecay * param   // L2 regularization
//   m_t = beta1 * m_{t-1} + (1 - beta1) * grad
//   v_t = beta2 * v_{t-1} + (1 - beta2) * grad²
//   m_hat = m_t / (1 - beta1^t)
//   v_hat = v_t / (1 - beta2^t)
//   param -= lr * m_hat / (sqrt(v_hat) + epsilon)
//
// ===========================================================================

import (
	"math"
)

// Optimizer updates a fixed set of parameters from their gradients.
type Optimizer interface {
	// ZeroGrad drops the gradients of every managed parameter.
	ZeroGrad()

	// Step applies one update using the current gradients.
	Step()

	// LR returns the current learning rate.
	LR() float64

	// SetLR replaces the learning rate. Schedulers use this.
	SetLR(lr float64)
}

// AdamConfig holds Adam's hyperparameters.
type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64 // L2 regularization, added to the gradient
}

// DefaultAdamConfig returns the usual Adam defaults with the given lr.
func DefaultAdamConfig(lr float64) AdamConfig {
	return AdamConfig{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
	}
}

// Adam implements the Adam optimization algorithm.
type Adam struct {
	cfg    AdamConfig
	params []*Tensor

	// State (one per parameter)
	m     [][]float64 // First moment (momentum)
	v     [][]float64 // Second moment (variance)
	steps []int       // Per-parameter step count for bias correction
}

// NewAdam creates an Adam optimizer over params.
func NewAdam(params []*Tensor, cfg AdamConfig) *Adam {
	opt := &Adam{
		cfg:    cfg,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
		steps:  make([]int, len(params)),
	}
	for i, p := range params {
		opt.m[i] = make([]float64, p.Size())
		opt.v[i] = make([]float64, p.Size())
	}
	return opt
}

// Config returns the optimizer's hyperparameters.
func (opt *Adam) Config() AdamConfig {
	return opt.cfg
}

// Params returns the parameters this optimizer updates.
func (opt *Adam) Params() []*Tensor {
	return opt.params
}

// ZeroGrad clears gradients.
func (opt *Adam) ZeroGrad() {
	for _, p := range opt.params {
		p.ZeroGrad()
	}
}

// LR returns the current learning rate.
func (opt *Adam) LR() float64 { return opt.cfg.LR }

// SetLR sets the learning rate used by later steps.
func (opt *Adam) SetLR(lr float64) { opt.cfg.LR = lr }

// Step performs the Adam update. Parameters without a gradient are skipped
// and keep their moment state.
func (opt *Adam) Step() {
	c := opt.cfg
	for i, p := range opt.params {
		if p.grad == nil {
			continue
		}
		opt.steps[i]++
		bias1 := 1.0 - math.Pow(c.Beta1, float64(opt.steps[i]))
		bias2 := 1.0 - math.Pow(c.Beta2, float64(opt.steps[i]))

		m, v := opt.m[i], opt.v[i]
		for j := range p.data {
			grad := p.grad[j] + c.WeightDecay*p.data[j]

			m[j] = c.Beta1*m[j] + (1.0-c.Beta1)*grad
			v[j] = c.Beta2*v[j] + (1.0-c.Beta2)*grad*grad

			mHat := m[j] / bias1
			vHat := v[j] / bias2

			p.data[j] -= c.LR * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}
}

// MultiStepLR decays the optimizer's learning rate by gamma every time the
// epoch counter reaches a milestone. A milestone listed twice decays twice.
type MultiStepLR struct {
	opt        Optimizer
	milestones map[int]int
	sorted     []int
	gamma      float64
	lastEpoch  int
}

// NewMultiStepLR creates a scheduler at epoch 0.
func NewMultiStepLR(opt Optimizer, milestones []int, gamma float64) *MultiStepLR {
	sched := &MultiStepLR{
		opt:        opt,
		milestones: make(map[int]int, len(milestones)),
		gamma:      gamma,
	}
	for _, m := range milestones {
		sched.milestones[m]++
		sched.sorted = append(sched.sorted, m)
	}
	return sched
}

// Milestones returns the configured milestones in the order given.
func (s *MultiStepLR) Milestones() []int {
	out := make([]int, len(s.sorted))
	copy(out, s.sorted)
	return out
}

// Gamma returns the decay factor.
func (s *MultiStepLR) Gamma() float64 { return s.gamma }

// LastEpoch returns how many times Step has been called.
func (s *MultiStepLR) LastEpoch() int { return s.lastEpoch }

// Step advances one epoch, decaying the learning rate on milestones.
func (s *MultiStepLR) Step() {
	s.lastEpoch++
	if n, ok := s.milestones[s.lastEpoch]; ok {
		s.opt.SetLR(s.opt.LR() * math.Pow(s.gamma, float64(n)))
	}
}

// ClipGradNorm scales gradients in place so their global L2 norm is at most
// maxNorm, and returns the norm measured before clipping. Parameters without
// a gradient are ignored.
func ClipGradNorm(params []*Tensor, maxNorm float64) float64 {
	globalNorm := 0.0
	for _, p := range params {
		for _, g := range p.grad {
			globalNorm += g * g
		}
	}
	globalNorm = math.Sqrt(globalNorm)

	coef := maxNorm / (globalNorm + 1e-6)
	if coef < 1 {
		for _, p := range params {
			for i := range p.grad {
				p.grad[i] *= coef
			}
		}
	}
	return globalNorm
}
