package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dikeworks/floxrun/internal/cli"
	"github.com/dikeworks/floxrun/internal/engine"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var licErr *engine.LicenseError
		if errors.As(err, &licErr) {
			// exit 4 lets wrapper scripts reschedule the batch after
			// the license pool frees up
			os.Exit(4)
		}
		os.Exit(1)
	}
}
