// Package main is the roux CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/alexgetty/roux/cmd/roux/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
