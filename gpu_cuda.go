//go:build cuda

package main

import (
	"fmt"
	"sync"

	"gorgonia.org/cu"
)

// cudaState holds the primary context created the first time the device is
// synchronized.
var cudaState struct {
	once sync.Once
	ctx  cu.CUContext
	err  error
}

func cudaAvailable() bool {
	n, err := cu.NumDevices()
	if err != nil {
		logDebugf("cuda: %v", err)
		return false
	}
	return n > 0
}

func cudaContext() (cu.CUContext, error) {
	cudaState.once.Do(func() {
		device, err := cu.GetDevice(0)
		if err != nil {
			cudaState.err = err
			return
		}
		cudaState.ctx, cudaState.err = device.MakeContext(cu.SchedAuto)
	})
	return cudaState.ctx, cudaState.err
}

func cudaSynchronize() error {
	if !convBenchmark.Load() {
		// No CUDA device was selected, nothing can be queued.
		return nil
	}
	ctx, err := cudaContext()
	if err != nil {
		return err
	}
	if err := cu.SetCurrentContext(ctx); err != nil {
		return err
	}
	return cu.Synchronize()
}

func cudaDescribe(index int) string {
	d := cu.Device(index)
	name, err := d.Name()
	if err != nil {
		return fmt.Sprintf("cuda:%d (unavailable: %v)", index, err)
	}
	mem, _ := d.TotalMem()
	major, _ := d.Attribute(cu.ComputeCapabilityMajor)
	minor, _ := d.Attribute(cu.ComputeCapabilityMinor)
	return fmt.Sprintf("%s (compute %d.%d, %d MiB, CUDA %d)", name, major, minor, mem>>20, cu.Version())
}
