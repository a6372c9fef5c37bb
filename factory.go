package main

// OptimizerFromOptimParams returns an Adam optimizer over net's parameters,
// with the learning rate taken from learning_rate.initial and the weight
// decay from regularization.L2.
func OptimizerFromOptimParams(params OptimParams, net Module) *Adam {
	cfg := DefaultAdamConfig(params.LearningRate.Initial)
	cfg.WeightDecay = params.Regularization.L2
	return NewAdam(net.Parameters(), cfg)
}

// LRSchedulerFromOptimParams returns a multi-step scheduler decaying opt's
// learning rate by learning_rate.decay_factor at each epoch in
// learning_rate.epoch_schedule. It returns nil when the schedule is empty.
func LRSchedulerFromOptimParams(params OptimParams, net Module, opt Optimizer) *MultiStepLR {
	schedule := params.LearningRate.EpochSchedule
	if len(schedule) == 0 {
		return nil
	}
	return NewMultiStepLR(opt, schedule, params.LearningRate.DecayFactor)
}
