// Package main is the entry point for the atlasctl CLI binary.
package main

import (
	"os"

	"bi-atlas/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
