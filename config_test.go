package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viperFromJSON(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("json")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
	return v
}

const optimParamsJSON = `{
  "policy": {
    "learning_rate": {"initial": 0.001, "epoch_schedule": [10, 20], "decay_factor": 0.5},
    "regularization": {"L2": 0.0001}
  }
}`

func TestLoadOptimParams(t *testing.T) {
	v := viperFromJSON(t, optimParamsJSON)

	params, err := LoadOptimParams(v, "policy")
	require.NoError(t, err)
	assert.Equal(t, 0.001, params.LearningRate.Initial)
	assert.Equal(t, []int{10, 20}, params.LearningRate.EpochSchedule)
	assert.Equal(t, 0.5, params.LearningRate.DecayFactor)
	assert.Equal(t, 0.0001, params.Regularization.L2)
}

func TestLoadOptimParamsFromRoot(t *testing.T) {
	v := viperFromJSON(t, `{
	  "learning_rate": {"initial": 0.01, "epoch_schedule": []},
	  "regularization": {"L2": 0}
	}`)

	params, err := LoadOptimParams(v, "")
	require.NoError(t, err)
	assert.Equal(t, 0.01, params.LearningRate.Initial)
	assert.Empty(t, params.LearningRate.EpochSchedule)
}

func TestLoadOptimParamsMissingKeys(t *testing.T) {
	tests := map[string]string{
		"learning_rate.initial": `{"learning_rate": {"epoch_schedule": []}, "regularization": {"L2": 0}}`,
		"regularization.L2":     `{"learning_rate": {"initial": 0.1, "epoch_schedule": []}}`,
		"decay_factor":          `{"learning_rate": {"initial": 0.1, "epoch_schedule": [5]}, "regularization": {"L2": 0}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadOptimParams(viperFromJSON(t, doc), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingConfigKey))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadOptimParamsValidates(t *testing.T) {
	v := viperFromJSON(t, `{"learning_rate": {"initial": -1, "epoch_schedule": []}, "regularization": {"L2": 0}}`)
	_, err := LoadOptimParams(v, "")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Train.Epochs)
	assert.Equal(t, "info", cfg.Train.LogLevel)
	assert.Equal(t, 1e-3, cfg.Algo.OptimParams.LearningRate.Initial)
	assert.Equal(t, []int{10, 15}, cfg.Algo.OptimParams.LearningRate.EpochSchedule)
}

func TestLoadConfigFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
train:
  epochs: 3
  batch_size: 8
algo:
  optim_params:
    learning_rate:
      initial: 0.01
      epoch_schedule: [2]
      decay_factor: 0.5
    regularization:
      L2: 0.001
`), 0o644))

	cfg, err := LoadConfig(path, []string{
		"train.cuda=true",
		"algo.optim_params.learning_rate.epoch_schedule=1,2",
		"algo.kl_weight=0.5",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Train.Epochs)
	assert.Equal(t, 8, cfg.Train.BatchSize)
	assert.Equal(t, 512, cfg.Train.Samples, "defaults fill unset keys")
	assert.True(t, cfg.Train.CUDA)
	assert.Equal(t, 0.5, cfg.Algo.KLWeight)
	assert.Equal(t, 0.01, cfg.Algo.OptimParams.LearningRate.Initial)
	assert.Equal(t, []int{1, 2}, cfg.Algo.OptimParams.LearningRate.EpochSchedule)
	assert.Equal(t, 0.001, cfg.Algo.OptimParams.Regularization.L2)
}

func TestLoadConfigRejectsBadOverrides(t *testing.T) {
	_, err := LoadConfig("", []string{"train.epochs"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = LoadConfig("", []string{"train.nope=1"})
	assert.True(t, errors.Is(err, ErrAttribute))

	_, err = LoadConfig("", []string{"train.epochs=0"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
