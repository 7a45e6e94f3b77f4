// Command solvebridge submits optimization models to a hosted
// decision-optimization service and decodes the solutions it returns.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/solvebridge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.ReportError(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
