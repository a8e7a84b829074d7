// ncopds is a terminal browser for OPDS e-book catalogs.
//
// Without arguments it starts the interactive browser; see "ncopds --help"
// for the scriptable commands.
package main

import (
	"fmt"
	"os"

	"github.com/ncopds/ncopds/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
