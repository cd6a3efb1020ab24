// Command dogmad runs the replicated configuration repository service:
// command executor, replication log, mirroring scheduler, and session
// store, wired together by internal/bootstrap.
package main

import (
	"fmt"
	"os"

	"github.com/opendogma/dogma/internal/bootstrap"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dogmad: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	svc, err := bootstrap.Build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dogmad: failed to initialize service: %v\n", err)
		os.Exit(1)
	}

	svc.Run()
}
