package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 {
		cmd := os.Args[1]
		switch cmd {
		case "train":
			if err := RunTrainCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "device":
			if err := RunDeviceCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "help", "-h", "--help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
			os.Exit(1)
		}
	}

	printUsage()
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  trainkit [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  train       Train a small VAE on synthetic data")
	fmt.Println("  device      Show the compute device that would be used")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  trainkit train -set train.epochs=5 -set algo.optim_params.learning_rate.initial=3e-3")
	fmt.Println("  trainkit train -config run.yaml -out runs/")
	fmt.Println("  trainkit device -cuda")
	fmt.Println()
}
