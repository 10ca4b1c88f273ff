// Command minard-sync browses Minard deployments and follows live updates.
package main

import (
	"os"

	"github.com/kilupskalvis/minard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
