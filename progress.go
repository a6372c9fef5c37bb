package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar is a Callback showing one bar across all epochs of a fit.
type ProgressBar struct {
	// GlobalProgress shows the bar. When false the bar is still driven but
	// renders nowhere.
	GlobalProgress bool

	// LeaveGlobalProgress keeps the finished bar on screen instead of
	// clearing it.
	LeaveGlobalProgress bool

	// Writer receives the rendered bar. Defaults to os.Stderr.
	Writer io.Writer

	globalDesc string
	globalBar  *progressbar.ProgressBar
}

// NewProgressBar creates the callback.
func NewProgressBar(globalProgress, leaveGlobalProgress bool) *ProgressBar {
	return &ProgressBar{
		GlobalProgress:      globalProgress,
		LeaveGlobalProgress: leaveGlobalProgress,
		globalDesc:          "Epoch: %d/%d",
	}
}

func (p *ProgressBar) description(t *Trainer) string {
	format := p.globalDesc
	if format == "" {
		format = "Epoch: %d/%d"
	}
	return fmt.Sprintf(format, t.CurrentEpoch+1, t.MaxEpochs)
}

// OnFitStart creates the bar sized to MaxEpochs, positioned at CurrentEpoch.
func (p *ProgressBar) OnFitStart(t *Trainer, _ TrainingModule) {
	w := p.Writer
	if w == nil {
		w = os.Stderr
	}
	if !p.GlobalProgress {
		w = io.Discard
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(p.description(t)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	}
	if !p.LeaveGlobalProgress {
		opts = append(opts, progressbar.OptionClearOnFinish())
	}

	p.globalBar = progressbar.NewOptions(t.MaxEpochs, opts...)
	if t.CurrentEpoch > 0 {
		_ = p.globalBar.Set(t.CurrentEpoch)
	}
}

// OnEpochEnd refreshes the description and advances the bar by one epoch.
func (p *ProgressBar) OnEpochEnd(t *Trainer, _ TrainingModule) {
	if p.globalBar == nil {
		return
	}
	p.globalBar.Describe(p.description(t))
	_ = p.globalBar.Add(1)
}

// OnFitEnd closes the bar and drops the handle.
func (p *ProgressBar) OnFitEnd(_ *Trainer, _ TrainingModule) {
	if p.globalBar == nil {
		return
	}
	_ = p.globalBar.Close()
	p.globalBar = nil
}
