// Command toolstats replays recorded tool-call events and manages the
// telemetry reports they produce.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err == nil {
		return
	}
	var ferr *flags.Error
	if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
		fmt.Fprintln(os.Stdout, ferr.Message)
		return
	}
	fmt.Fprintln(os.Stderr, "toolstats:", err)
	os.Exit(1)
}
