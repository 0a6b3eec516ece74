// Package main provides the entry point for the plantsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/plantsearch/cmd/plantsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
