// Package main is the entry point for the vkernel command-line application.
package main

import (
	"fmt"
	"os"

	"github.com/stacklok/vkernel/cmd/vkernel/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "there was an error: %v\n", err)
		os.Exit(1)
	}
}
