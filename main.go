// Package main is the entry point for the hfinger HTTP request fingerprinting tool.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/hfinger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
