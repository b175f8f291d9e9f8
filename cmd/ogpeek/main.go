// Command ogpeek decodes and evaluates Python pickles without running Python.
package main

import (
	"os"

	"github.com/kisielk/ogpeek/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
