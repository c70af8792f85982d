// Command afdworker is the per-job worker process described by spec.md
// §4.8: it parses its argv-driven job, moves the job's files over
// whichever protocol the job descriptor names, and exits with one of the
// codes in worker/exitcode.go.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/afdcore/afdcore/worker"
)

func main() {
	args, err := worker.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(worker.Incorrect)
	}
	os.Exit(worker.Run(context.Background(), args))
}
