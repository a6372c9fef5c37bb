package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// A tiny variational autoencoder used by the train command to exercise the
// training helpers end to end:
//
//	x → Encoder → (μ, log σ²) → Reparameterize → z → Decoder → x̂
//
// Loss = MSE(x̂, x) + klWeight · KL(q(z|x) ‖ N(0, I))
//
// VAETrainer additionally keeps an exponential moving average copy of the
// decoder (the "target" decoder), soft-updated after every optimizer step,
// and validates with it under a no-grad scope.
//
// ===========================================================================

// Encoder maps inputs to the mean and log-variance of q(z|x).
type Encoder struct {
	Body   *MLP
	Mu     *Linear
	LogVar *Linear
}

// NewEncoder creates an encoder with one hidden layer.
func NewEncoder(rng *rand.Rand, inDim, hiddenDim, latentDim int) *Encoder {
	return &Encoder{
		Body:   NewMLP(rng, inDim, hiddenDim),
		Mu:     NewLinear(hiddenDim, latentDim, rng),
		LogVar: NewLinear(hiddenDim, latentDim, rng),
	}
}

// Forward returns (mu, logvar) for a (batch, inDim) input.
func (e *Encoder) Forward(x *Tensor) (mu, logvar *Tensor) {
	h := ReLU(e.Body.Forward(x))
	return e.Mu.Forward(h), e.LogVar.Forward(h)
}

// Parameters returns body, mu head, then logvar head parameters.
func (e *Encoder) Parameters() []*Tensor {
	params := e.Body.Parameters()
	params = append(params, e.Mu.Parameters()...)
	return append(params, e.LogVar.Parameters()...)
}

// Decoder maps latents back to input space.
type Decoder struct {
	Net *MLP
}

// NewDecoder creates a decoder with one hidden layer.
func NewDecoder(rng *rand.Rand, latentDim, hiddenDim, outDim int) *Decoder {
	return &Decoder{Net: NewMLP(rng, latentDim, hiddenDim, outDim)}
}

// Forward decodes a (batch, latentDim) tensor.
func (d *Decoder) Forward(z *Tensor) *Tensor {
	return d.Net.Forward(z)
}

// Parameters returns the decoder's parameters.
func (d *Decoder) Parameters() []*Tensor {
	return d.Net.Parameters()
}

// VAE pairs an Encoder and a Decoder.
type VAE struct {
	Encoder *Encoder
	Decoder *Decoder
}

// NewVAE creates a VAE for inDim-dimensional data.
func NewVAE(rng *rand.Rand, inDim, hiddenDim, latentDim int) *VAE {
	return &VAE{
		Encoder: NewEncoder(rng, inDim, hiddenDim, latentDim),
		Decoder: NewDecoder(rng, latentDim, hiddenDim, inDim),
	}
}

// Parameters returns encoder then decoder parameters.
func (v *VAE) Parameters() []*Tensor {
	return append(v.Encoder.Parameters(), v.Decoder.Parameters()...)
}

// Loss computes the VAE objective for x. recon and kl are returned as well
// for reporting.
func (v *VAE) Loss(x *Tensor, klWeight float64) (loss, recon, kl *Tensor) {
	mu, logvar := v.Encoder.Forward(x)
	z := Reparameterize(mu, logvar)
	recon = MSELoss(v.Decoder.Forward(z), x)
	kl = KLDivergence(mu, logvar)
	return Add(recon, Scale(kl, klWeight)), recon, kl
}

// KLDivergence is the mean over elements of KL(N(mu, e^logvar) ‖ N(0, 1)):
//
//	-0.5 · mean(1 + logvar - mu² - e^logvar)
func KLDivergence(mu, logvar *Tensor) *Tensor {
	inner := Sub(Sub(AddScalar(logvar, 1), Mul(mu, mu)), Exp(logvar))
	return Scale(Mean(inner), -0.5)
}

// RingDataset samples n points around the unit circle with Gaussian noise.
func RingDataset(rng *rand.Rand, n int, noise float64) *Tensor {
	t := NewTensor(n, 2)
	for i := 0; i < n; i++ {
		theta := rng.Float64() * 2 * math.Pi
		t.data[i*2] = math.Cos(theta) + rng.NormFloat64()*noise
		t.data[i*2+1] = math.Sin(theta) + rng.NormFloat64()*noise
	}
	return t
}

// gatherRows copies the given rows of a 2-D tensor into a new tensor.
func gatherRows(t *Tensor, rows []int) *Tensor {
	cols := t.shape[1]
	out := NewTensor(len(rows), cols)
	for i, r := range rows {
		copy(out.data[i*cols:(i+1)*cols], t.data[r*cols:(r+1)*cols])
	}
	return out
}

// VAETrainer trains a VAE one epoch at a time. It implements TrainingModule.
type VAETrainer struct {
	Model  *VAE
	Target *Decoder // moving average of Model.Decoder

	Optimizer *Adam
	Scheduler *MultiStepLR // nil when the learning rate is constant

	TrainData *Tensor
	ValData   *Tensor

	BatchSize   int
	MaxGradNorm float64 // 0 disables clipping
	KLWeight    float64
	TargetTau   float64
	Timer       bool

	// RunLog receives per-epoch timing and metric lines. May be nil.
	RunLog io.Writer

	rng *rand.Rand
}

// NewVAETrainer wires a VAE, its optimizer and schedule from cfg, and
// initializes the target decoder as an exact copy of the model's.
func NewVAETrainer(cfg Config, rng *rand.Rand, train, val *Tensor) (*VAETrainer, error) {
	if cfg.Train.BatchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "batch size %d", cfg.Train.BatchSize)
	}
	if train == nil || len(train.shape) != 2 {
		return nil, errors.Wrap(ErrInvalidConfig, "training data must be a non-empty (rows, features) tensor")
	}
	inDim := train.shape[1]
	if val != nil && (len(val.shape) != 2 || val.shape[1] != inDim) {
		return nil, errors.Wrapf(ErrInvalidConfig, "validation data shape %v, want (rows, %d)", val.shape, inDim)
	}

	model := NewVAE(rng, inDim, cfg.Algo.HiddenDim, cfg.Algo.LatentDim)
	target := NewDecoder(rng, cfg.Algo.LatentDim, cfg.Algo.HiddenDim, inDim)
	if err := HardUpdate(model.Decoder, target); err != nil {
		return nil, errors.Wrap(err, "init target decoder")
	}

	opt := OptimizerFromOptimParams(cfg.Algo.OptimParams, model)
	return &VAETrainer{
		Model:       model,
		Target:      target,
		Optimizer:   opt,
		Scheduler:   LRSchedulerFromOptimParams(cfg.Algo.OptimParams, model, opt),
		TrainData:   train,
		ValData:     val,
		BatchSize:   cfg.Train.BatchSize,
		MaxGradNorm: cfg.Train.MaxGradNorm,
		KLWeight:    cfg.Algo.KLWeight,
		TargetTau:   cfg.Train.TargetTau,
		Timer:       cfg.Train.Timer,
		rng:         rng,
	}, nil
}

// Parameters returns the trained model's parameters.
func (v *VAETrainer) Parameters() []*Tensor {
	return v.Model.Parameters()
}

// TrainEpoch runs shuffled minibatches over the training data, then
// validates and advances the learning rate schedule.
func (v *VAETrainer) TrainEpoch(ctx context.Context, epoch int) (map[string]float64, error) {
	if v.BatchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "batch size %d", v.BatchSize)
	}
	start, timing := Tic(v.Timer)

	n := v.TrainData.shape[0]
	perm := v.rng.Perm(n)

	var opts []BackpropOption
	if v.MaxGradNorm > 0 {
		opts = append(opts, WithMaxGradNorm(v.MaxGradNorm))
	}

	var totalLoss, totalRecon, totalKL, totalGrad float64
	batches := 0
	for i := 0; i < n; i += v.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := i + v.BatchSize
		if end > n {
			end = n
		}
		x := gatherRows(v.TrainData, perm[i:end])

		loss, recon, kl := v.forward(x, true)
		gradNorms, err := BackpropForLoss(v.Model, v.Optimizer, loss, opts...)
		if err != nil {
			return nil, err
		}
		if err := SoftUpdate(v.Model.Decoder, v.Target, v.TargetTau); err != nil {
			return nil, err
		}

		totalLoss += loss.Item()
		totalRecon += recon.Item()
		totalKL += kl.Item()
		totalGrad += gradNorms
		batches++
	}

	metrics := map[string]float64{
		"loss":      totalLoss / float64(batches),
		"recon":     totalRecon / float64(batches),
		"kl":        totalKL / float64(batches),
		"grad_norm": totalGrad / float64(batches),
		"lr":        v.Optimizer.LR(),
	}
	if v.ValData != nil {
		valLoss, _, _ := v.forward(v.ValData, false)
		metrics["val_loss"] = valLoss.Item()
		metrics["val_recon"] = v.Evaluate(v.ValData)
	}
	if v.Scheduler != nil {
		v.Scheduler.Step()
	}

	Toc(start, fmt.Sprintf("epoch %d", epoch+1), timing, v.RunLog)
	if v.RunLog != nil {
		if err := PrintLog(fmt.Sprintf("epoch %d %s", epoch+1, FormatMetrics(metrics)), v.RunLog, WithoutDisplay()); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

// Evaluate returns the reconstruction error of the target decoder on data,
// decoding the posterior mean. No gradient history is recorded.
func (v *VAETrainer) Evaluate(data *Tensor) float64 {
	scope := NoGrad()
	scope.Enter()
	defer scope.Exit()

	mu, _ := v.Model.Encoder.Forward(data)
	return MSELoss(v.Target.Forward(mu), data).Item()
}

// forward computes the model loss on x. Outside training no gradient
// history is recorded.
func (v *VAETrainer) forward(x *Tensor, training bool) (loss, recon, kl *Tensor) {
	scope := MaybeNoGrad(!training)
	scope.Enter()
	defer scope.Exit()

	return v.Model.Loss(x, v.KLWeight)
}
