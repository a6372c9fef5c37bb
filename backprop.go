package main

import (
	"github.com/pkg/errors"
)

type backpropOptions struct {
	maxGradNorm float64
	clip        bool
	retainGraph bool
}

// BackpropOption configures BackpropForLoss.
type BackpropOption func(*backpropOptions)

// WithMaxGradNorm clips the global gradient norm to maxNorm before stepping.
func WithMaxGradNorm(maxNorm float64) BackpropOption {
	return func(o *backpropOptions) {
		o.maxGradNorm = maxNorm
		o.clip = true
	}
}

// WithRetainGraph keeps the loss graph alive so it can be backpropagated
// again.
func WithRetainGraph() BackpropOption {
	return func(o *backpropOptions) {
		o.retainGraph = true
	}
}

// BackpropForLoss clears opt's gradients, backpropagates loss, optionally
// clips net's gradients, and steps opt.
//
// The returned value is the sum over parameters of the squared L2 norm of
// each gradient, measured after clipping. It is not square-rooted.
func BackpropForLoss(net Module, opt Optimizer, loss *Tensor, opts ...BackpropOption) (float64, error) {
	var o backpropOptions
	for _, fn := range opts {
		fn(&o)
	}

	opt.ZeroGrad()
	if err := loss.Backward(o.retainGraph); err != nil {
		return 0, errors.Wrap(err, "backprop")
	}

	params := net.Parameters()
	if o.clip {
		ClipGradNorm(params, o.maxGradNorm)
	}

	gradNorms := 0.0
	for _, p := range params {
		if p.grad == nil {
			continue
		}
		sq := 0.0
		for _, g := range p.grad {
			sq += g * g
		}
		gradNorms += sq
	}

	opt.Step()
	return gradNorms, nil
}
