package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptimParams(schedule ...int) OptimParams {
	return OptimParams{
		LearningRate: LearningRateParams{
			Initial:       3e-4,
			EpochSchedule: schedule,
			DecayFactor:   0.1,
		},
		Regularization: RegularizationParams{L2: 1e-5},
	}
}

func TestOptimizerFromOptimParams(t *testing.T) {
	net := NewMLP(rand.New(rand.NewSource(1)), 2, 4, 1)

	opt := OptimizerFromOptimParams(testOptimParams(), net)
	require.NotNil(t, opt)

	cfg := opt.Config()
	assert.Equal(t, 3e-4, cfg.LR)
	assert.Equal(t, 1e-5, cfg.WeightDecay)
	assert.Equal(t, 0.9, cfg.Beta1)
	assert.Equal(t, 0.999, cfg.Beta2)
	assert.Equal(t, net.Parameters(), opt.Params())
}

func TestLRSchedulerFromOptimParams(t *testing.T) {
	net := NewMLP(rand.New(rand.NewSource(1)), 2, 4, 1)

	t.Run("empty schedule", func(t *testing.T) {
		params := testOptimParams()
		opt := OptimizerFromOptimParams(params, net)
		assert.Nil(t, LRSchedulerFromOptimParams(params, net, opt))
	})

	t.Run("milestones", func(t *testing.T) {
		params := testOptimParams(3, 7)
		opt := OptimizerFromOptimParams(params, net)

		sched := LRSchedulerFromOptimParams(params, net, opt)
		require.NotNil(t, sched)
		assert.Equal(t, []int{3, 7}, sched.Milestones())
		assert.Equal(t, 0.1, sched.Gamma())

		for i := 0; i < 3; i++ {
			sched.Step()
		}
		assert.InDelta(t, 3e-5, opt.LR(), 1e-15)
	})
}
