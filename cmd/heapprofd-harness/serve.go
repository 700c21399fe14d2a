package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AndrewB330/perfetto/heapprofd"
	"github.com/AndrewB330/perfetto/internal/wire"
)

func newServeCmd() *cobra.Command {
	var socketPath string
	var heapNames []string
	var interval uint64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-process fake collector daemon on a Unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if socketPath == "" {
				socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("heapprofd-harness-%d.sock", os.Getpid()))
			}
			os.Remove(socketPath)

			intervals := make([]uint64, len(heapNames))
			for i := range intervals {
				intervals[i] = interval
			}

			daemon, err := heapprofd.NewMockDaemon(socketPath, wire.ClientConfiguration{
				HeapNames:         heapNames,
				SamplingIntervals: intervals,
			})
			if err != nil {
				return fmt.Errorf("start mock daemon: %w", err)
			}
			defer daemon.Close()
			defer os.Remove(socketPath)

			fmt.Printf("listening on %s\n", daemon.Addr())
			fmt.Println("press Ctrl+C to stop")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			fmt.Printf("mallocs received: %d, frees received: %d\n", len(daemon.Mallocs()), len(daemon.Frees()))
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path (default: a temp path under $TMPDIR)")
	cmd.Flags().StringSliceVar(&heapNames, "heaps", []string{"libc.malloc"}, "Heap names the fake daemon will accept")
	cmd.Flags().Uint64Var(&interval, "interval", 4096, "Sampling interval in bytes applied to every accepted heap")
	return cmd
}
