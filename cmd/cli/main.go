// Package main is the entry point for the refine CLI binary.
package main

import (
	"os"

	cli "refinery/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
