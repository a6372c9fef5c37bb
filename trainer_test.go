package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	events []string
}

func (r *recordingCallback) OnFitStart(t *Trainer, _ TrainingModule) {
	r.events = append(r.events, fmt.Sprintf("start@%d", t.CurrentEpoch))
}

func (r *recordingCallback) OnEpochEnd(t *Trainer, _ TrainingModule) {
	r.events = append(r.events, fmt.Sprintf("epoch@%d", t.CurrentEpoch))
}

func (r *recordingCallback) OnFitEnd(t *Trainer, _ TrainingModule) {
	r.events = append(r.events, fmt.Sprintf("end@%d", t.CurrentEpoch))
}

type fakeModule struct {
	epochs  []int
	failAt  int
	onEpoch func(epoch int)
}

func (f *fakeModule) Parameters() []*Tensor { return nil }

func (f *fakeModule) TrainEpoch(_ context.Context, epoch int) (map[string]float64, error) {
	if f.onEpoch != nil {
		f.onEpoch(epoch)
	}
	if f.failAt >= 0 && epoch == f.failAt {
		return nil, errors.New("boom")
	}
	f.epochs = append(f.epochs, epoch)
	return map[string]float64{"loss": float64(epoch)}, nil
}

func TestTrainerFitCallbackOrder(t *testing.T) {
	rec := &recordingCallback{}
	m := &fakeModule{failAt: -1}
	tr := &Trainer{MaxEpochs: 3, Callbacks: []Callback{rec}}

	require.NoError(t, tr.Fit(context.Background(), m))

	assert.Equal(t, []int{0, 1, 2}, m.epochs)
	assert.Equal(t, []string{"start@0", "epoch@0", "epoch@1", "epoch@2", "end@3"}, rec.events)
	assert.Equal(t, map[string]float64{"loss": 2}, tr.Metrics)
}

func TestTrainerFitResumes(t *testing.T) {
	m := &fakeModule{failAt: -1}
	tr := &Trainer{MaxEpochs: 4, CurrentEpoch: 2}

	require.NoError(t, tr.Fit(context.Background(), m))
	assert.Equal(t, []int{2, 3}, m.epochs)
}

func TestTrainerFitErrorStillEnds(t *testing.T) {
	rec := &recordingCallback{}
	m := &fakeModule{failAt: 1}
	tr := &Trainer{MaxEpochs: 3, Callbacks: []Callback{rec}}

	err := tr.Fit(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epoch 2")
	assert.Equal(t, []string{"start@0", "epoch@0", "end@1"}, rec.events)
}

func TestTrainerFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &fakeModule{failAt: -1, onEpoch: func(epoch int) {
		if epoch == 0 {
			cancel()
		}
	}}
	tr := &Trainer{MaxEpochs: 5}

	err := tr.Fit(ctx, m)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []int{0}, m.epochs)
}

func TestFormatMetrics(t *testing.T) {
	assert.Equal(t, "a=1.0000 b=0.5000", FormatMetrics(map[string]float64{"b": 0.5, "a": 1}))
	assert.Equal(t, "", FormatMetrics(nil))
}

func TestProgressBarCallback(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(true, true)
	pb.Writer = &buf

	tr := &Trainer{MaxEpochs: 3, Callbacks: []Callback{pb}}
	require.NoError(t, tr.Fit(context.Background(), &fakeModule{failAt: -1}))

	out := buf.String()
	assert.Contains(t, out, "Epoch: 1/3")
	assert.Contains(t, out, "Epoch: 3/3")
	assert.Nil(t, pb.globalBar, "handle dropped at fit end")
}

func TestProgressBarResumesAtCurrentEpoch(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(true, false)
	pb.Writer = &buf

	tr := &Trainer{MaxEpochs: 4, CurrentEpoch: 2}
	pb.OnFitStart(tr, nil)
	require.NotNil(t, pb.globalBar)
	assert.Contains(t, buf.String(), "Epoch: 3/4")

	pb.OnEpochEnd(tr, nil)
	pb.OnFitEnd(tr, nil)
	assert.Nil(t, pb.globalBar)
}

func TestProgressBarHidden(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(false, true)
	pb.Writer = &buf

	tr := &Trainer{MaxEpochs: 2, Callbacks: []Callback{pb}}
	require.NoError(t, tr.Fit(context.Background(), &fakeModule{failAt: -1}))
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
