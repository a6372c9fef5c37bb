package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ===========================================================================
// TRAINING CLI
// ===========================================================================
//
// Trains a tiny VAE on a synthetic ring of 2-D points. The point is the
// plumbing, not the model: every run goes through
//
//  1. LoadConfig            - viper defaults, config file, -set overrides
//  2. GetDevice             - cpu or cuda:0
//  3. NewVAETrainer         - optimizer and schedule from optim_params,
//                             target decoder via HardUpdate
//  4. Trainer.Fit           - BackpropForLoss + SoftUpdate per batch,
//                             no-grad validation, ProgressBar callback
//  5. Tic/Toc + PrintLog    - per-epoch timings into run-<id>.log
//
// ===========================================================================

// stringList collects repeated string flags.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// RunTrainCommand implements the train CLI.
func RunTrainCommand(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)

	configPath := fs.String("config", "", "Config file (yaml, json or toml)")
	useCUDA := fs.Bool("cuda", false, "Use a CUDA device if available")
	outDir := fs.String("out", "", "Directory for the run log (overrides train.output_dir)")
	var overrides stringList
	fs.Var(&overrides, "set", "Override a config value, e.g. -set train.epochs=5 (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *useCUDA {
		overrides = append(overrides, "train.cuda=true")
	}
	if *outDir != "" {
		overrides = append(overrides, "train.output_dir="+*outDir)
	}

	cfg, err := LoadConfig(*configPath, overrides)
	if err != nil {
		return err
	}
	if err := SetLogLevel(cfg.Train.LogLevel); err != nil {
		return err
	}

	device := GetDevice(cfg.Train.CUDA)
	logInfof("device: %s - %s", device, DescribeDevice(device))

	runID := uuid.New().String()
	if err := os.MkdirAll(cfg.Train.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	logPath := filepath.Join(cfg.Train.OutputDir, "run-"+runID+".log")
	f, err := os.Create(logPath)
	if err != nil {
		return errors.Wrap(err, "create run log")
	}
	defer f.Close()
	runLog := bufio.NewWriter(f)
	defer runLog.Flush()

	if err := PrintLog(fmt.Sprintf("run %s on %s", runID, device), runLog); err != nil {
		return err
	}

	SetNoiseSeed(cfg.Train.Seed)
	rng := rand.New(rand.NewSource(cfg.Train.Seed))
	train := RingDataset(rng, cfg.Train.Samples, 0.05)
	val := RingDataset(rng, cfg.Train.Samples/4+1, 0.05)

	module, err := NewVAETrainer(cfg, rng, train, val)
	if err != nil {
		return err
	}
	module.RunLog = runLog
	logInfof("model: %d parameters, lr %g, schedule %v", CountParameters(module.Model),
		module.Optimizer.LR(), cfg.Algo.OptimParams.LearningRate.EpochSchedule)

	trainer := &Trainer{MaxEpochs: cfg.Train.Epochs}
	if cfg.Train.Progress {
		trainer.Callbacks = append(trainer.Callbacks, NewProgressBar(true, cfg.Train.LeaveBar))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start, timing := Tic(cfg.Train.Timer)
	if err := trainer.Fit(ctx, module); err != nil {
		logErrorf("training stopped: %v", err)
		return err
	}
	Toc(start, "fit", timing, runLog)

	if err := PrintLog("final "+FormatMetrics(trainer.Metrics), runLog); err != nil {
		return err
	}
	logInfof("run log written to %s", logPath)
	return nil
}
