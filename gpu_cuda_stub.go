//go:build !cuda

package main

import "fmt"

// CUDA support needs the cuda build tag and the CUDA driver installed.

func cudaAvailable() bool {
	return false
}

func cudaSynchronize() error {
	return nil
}

func cudaDescribe(index int) string {
	return fmt.Sprintf("cuda:%d (not compiled in, rebuild with -tags cuda)", index)
}
