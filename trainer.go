package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// TrainingModule is a model that knows how to run one training epoch.
type TrainingModule interface {
	Module

	// TrainEpoch runs one pass over the training data and returns metrics
	// to report, e.g. {"loss": 0.42}.
	TrainEpoch(ctx context.Context, epoch int) (map[string]float64, error)
}

// Callback hooks into Trainer.Fit. Invocations are sequential on the
// goroutine running Fit.
type Callback interface {
	OnFitStart(t *Trainer, m TrainingModule)
	OnEpochEnd(t *Trainer, m TrainingModule)
	OnFitEnd(t *Trainer, m TrainingModule)
}

// Trainer drives a TrainingModule through its epochs and notifies callbacks.
type Trainer struct {
	MaxEpochs int

	// CurrentEpoch is the zero-based epoch being trained. Set it before Fit
	// to resume.
	CurrentEpoch int

	Callbacks []Callback

	// Metrics holds what the last TrainEpoch returned.
	Metrics map[string]float64
}

// Fit trains m from CurrentEpoch up to MaxEpochs. OnFitEnd runs even when an
// epoch fails or ctx is cancelled.
func (t *Trainer) Fit(ctx context.Context, m TrainingModule) (err error) {
	for _, cb := range t.Callbacks {
		cb.OnFitStart(t, m)
	}
	defer func() {
		for _, cb := range t.Callbacks {
			cb.OnFitEnd(t, m)
		}
	}()

	for ; t.CurrentEpoch < t.MaxEpochs; t.CurrentEpoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "fit stopped before epoch %d", t.CurrentEpoch+1)
		}

		metrics, err := m.TrainEpoch(ctx, t.CurrentEpoch)
		if err != nil {
			return errors.Wrapf(err, "epoch %d", t.CurrentEpoch+1)
		}
		t.Metrics = metrics
		logDebugf("epoch %d/%d: %s", t.CurrentEpoch+1, t.MaxEpochs, FormatMetrics(metrics))

		for _, cb := range t.Callbacks {
			cb.OnEpochEnd(t, m)
		}
	}
	return nil
}

// FormatMetrics renders metrics as "key=value" pairs sorted by key.
func FormatMetrics(metrics map[string]float64) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, metrics[k])
	}
	return strings.Join(parts, " ")
}
