// Command inventoryctl prices and matches tradeline inventory files offline.
package main

import (
	"os"

	"github.com/yourorg/tradeline-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
