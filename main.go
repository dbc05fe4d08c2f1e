// Package main is the entry point for the fun plugin host.
package main

import (
	"fmt"
	"os"

	"github.com/funproject/fun/cmd"
)

// Build information injected via ldflags at build time.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fun: %v\n", err)
		os.Exit(1)
	}
}
