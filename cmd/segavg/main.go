// Command segavg builds the segment average engine over a directory of
// customer, orders and lineitem tables and answers queries from the command
// line or over HTTP and gRPC.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
