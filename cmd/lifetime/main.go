// Command lifetime starts and stops the modules of a manifest in
// dependency order.
package main

import (
	"fmt"
	"os"

	"github.com/lifetime-go/lifetime/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(version); err != nil {
		fmt.Fprintf(os.Stderr, "lifetime: %v\n", err)
		os.Exit(1)
	}
}
