package main

import (
	"fmt"
	"runtime"
)

func (c *cli) cmdVersion() int {
	fmt.Fprintf(c.stdout, "arca-replay\n")
	fmt.Fprintf(c.stdout, "  Version:    %s\n", Version)
	fmt.Fprintf(c.stdout, "  Commit:     %s\n", Commit)
	fmt.Fprintf(c.stdout, "  Build Date: %s\n", BuildDate)
	fmt.Fprintf(c.stdout, "  Go:         %s\n", runtime.Version())
	return ExitSuccess
}
