// Command geoexport is the entry point for the geoexport CLI binary.
package main

import (
	"os"

	"geoexport/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
