// Package main provides the blogcheck CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/blogcheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
