// Package main is the entry point for the splat-replay daemon.
package main

import (
	"os"

	"github.com/saw4405/splat-replay/cmd/splat-replay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
