// Command quotevoice answers questions with quotes from a graph of famous
// quotations, by text or by voice, and recognizes enrolled speakers.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/quotevoice/cmd/quotevoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
