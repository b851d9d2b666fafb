// Package main provides the entry point for the jobfinder CLI.
package main

import (
	"os"

	"github.com/alexweberk/ai-jobfinder/internal/cli"
)

func main() {
	// Execute logs the error through the run logger.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
