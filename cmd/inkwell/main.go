// Command inkwell is the management CLI for the ingestion daemon: config
// scaffolding, ledger inspection, and a foreground run mode.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
