package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Ctrl-C during a foreground daemon is a normal exit, not an error
		// worth printing.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "overdub:", err)
		}
		os.Exit(1)
	}
}
