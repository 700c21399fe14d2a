// Command heapprofd-harness is a demo/load-test binary for the
// heapprofd client runtime, grounded on the teacher's cmd/ublk-mem
// (a runnable demo wired to its library's public API) but rebuilt on
// cobra subcommands the way the rest of the example pack's CLIs are
// structured.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "heapprofd-harness",
		Short: "Exercise the heapprofd client runtime without a real device",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newStressCmd())
	return root
}
