// Package main provides the entry point for the regsearch CLI.
package main

import (
	"os"

	"github.com/ohmbase/regsearch/cmd/regsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
