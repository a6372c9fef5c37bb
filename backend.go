package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file picks the compute device a training run reports against and
// owns the process-wide backend flags.
//
// Tensor math in this module runs on the host. Selecting the CUDA device
// still matters for two things:
//   - SynchronizeDevice blocks until queued accelerator work finishes, so
//     Tic/Toc measure real elapsed time when GPU kernels are in flight
//   - the convolution benchmark flag is switched on, the same way a
//     framework would let its kernel autotuner pick the fastest algorithms
//
// CUDA support is compiled in with the `cuda` build tag (gpu_cuda.go).
// Without it, cudaAvailable always reports false.
//
// ===========================================================================

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// DeviceType is the kind of compute device.
type DeviceType string

// Supported device types.
const (
	DeviceCPU  DeviceType = "cpu"
	DeviceCUDA DeviceType = "cuda"
)

// Device identifies a compute device, e.g. cpu or cuda:0.
type Device struct {
	Type  DeviceType
	Index int
}

// String renders the device the usual way: "cpu" or "cuda:<index>".
func (d Device) String() string {
	if d.Type == DeviceCUDA {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return string(d.Type)
}

// IsCUDA reports whether d is a GPU device.
func (d Device) IsCUDA() bool {
	return d.Type == DeviceCUDA
}

var convBenchmark atomic.Bool

// BenchmarkEnabled reports whether convolution algorithm benchmarking was
// switched on by selecting a GPU device.
func BenchmarkEnabled() bool {
	return convBenchmark.Load()
}

// GetDevice returns cuda:0 when tryToUseCUDA is set and a CUDA device is
// available, enabling convolution benchmarking as a side effect. Otherwise it
// returns the CPU device.
func GetDevice(tryToUseCUDA bool) Device {
	if tryToUseCUDA && cudaAvailable() {
		convBenchmark.Store(true)
		d := Device{Type: DeviceCUDA, Index: 0}
		logInfof("using device %s", d)
		return d
	}
	if tryToUseCUDA {
		logWarningf("CUDA requested but not available, falling back to cpu")
	}
	return Device{Type: DeviceCPU}
}

// SynchronizeDevice blocks until all outstanding accelerator work has
// completed. It returns immediately on CPU-only builds.
func SynchronizeDevice() {
	if err := cudaSynchronize(); err != nil {
		logWarningf("device synchronize: %v", err)
	}
}

// DescribeDevice returns a human readable summary of d.
func DescribeDevice(d Device) string {
	if d.IsCUDA() {
		return cudaDescribe(d.Index)
	}
	return describeCPU()
}

func describeCPU() string {
	var features []string
	for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD, cpuid.SVE} {
		if cpuid.CPU.Supports(f) {
			features = append(features, f.String())
		}
	}
	name := cpuid.CPU.BrandName
	if name == "" {
		name = "unknown CPU"
	}
	return fmt.Sprintf("%s (%d physical / %d logical cores, features: %s)",
		name, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, strings.Join(features, " "))
}
