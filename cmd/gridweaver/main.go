// Package main provides the GridWeaver command.
package main

import (
	"os"

	"github.com/leapstack-labs/gridweaver/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
