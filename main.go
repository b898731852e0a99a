package main

import (
	"os"

	"github.com/temirov/prbaseline/cmd/cli"
)

// main executes the prbaseline command-line application.
func main() {
	os.Exit(cli.Run())
}
