package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/logging"
)

func main() {
	logging.Setup()
	os.Exit(run())
}

// run owns the command context so its connections are closed, and buffered
// ERROR logs written, whether or not the command succeeds.
func run() int {
	ctx := newCommandContext()
	defer ctx.close()

	if err := newRootCommand(ctx).Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}
