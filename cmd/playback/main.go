// Command playback drives the Self-Healing Playback Core from the
// terminal: replay a recorded session against a live browser bridge or
// a static HTML snapshot, and inspect the learned-healing cache.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}
