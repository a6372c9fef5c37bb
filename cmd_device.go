package main

import (
	"flag"
	"fmt"
)

// RunDeviceCommand prints the device a training run would use.
func RunDeviceCommand(args []string) error {
	fs := flag.NewFlagSet("device", flag.ExitOnError)
	useCUDA := fs.Bool("cuda", false, "Try to use a CUDA device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	device := GetDevice(*useCUDA)
	fmt.Printf("Device:    %s\n", device)
	fmt.Printf("Details:   %s\n", DescribeDevice(device))
	fmt.Printf("Benchmark: %t\n", BenchmarkEnabled())
	return nil
}
