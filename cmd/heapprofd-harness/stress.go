package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/AndrewB330/perfetto/heapprofd"
	"github.com/AndrewB330/perfetto/internal/wire"
)

func newStressCmd() *cobra.Command {
	var numHeaps int
	var numAllocs int
	var interval uint64

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Register heaps, init a session against an in-process daemon, and hammer ReportAllocation/ReportFree",
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath := filepath.Join(os.TempDir(), fmt.Sprintf("heapprofd-stress-%d.sock", os.Getpid()))
			os.Remove(socketPath)

			heapNames := make([]string, numHeaps)
			intervals := make([]uint64, numHeaps)
			ids := make([]uint32, numHeaps)
			for i := 0; i < numHeaps; i++ {
				name := fmt.Sprintf("heap-%d", i)
				heapNames[i] = name
				intervals[i] = interval
				ids[i] = heapprofd.RegisterHeap(heapprofd.NewHeapInfo(name, nil))
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

			heapprofd.SetCentralSocketPath(socketPath)
			if !heapprofd.InitSession(nil, nil) {
				return fmt.Errorf("InitSession failed against local mock daemon")
			}

			var wg sync.WaitGroup
			wg.Add(numHeaps)
			for i := 0; i < numHeaps; i++ {
				go func(heapID uint32) {
					defer wg.Done()
					for j := 0; j < numAllocs; j++ {
						allocID := uint64(j + 1)
						heapprofd.ReportAllocation(heapID, allocID, 128)
						heapprofd.ReportFree(heapID, allocID)
					}
				}(ids[i])
			}
			wg.Wait()

			snap := heapprofd.DefaultMetrics().Snapshot()
			fmt.Printf("allocations reported: %d\n", snap.AllocationsReported)
			fmt.Printf("frees reported: %d\n", snap.FreesReported)
			fmt.Printf("bytes sampled: %d\n", snap.BytesSampled)
			fmt.Printf("socket write failures: %d\n", snap.SocketWriteFailures)
			return nil
		},
	}

	cmd.Flags().IntVar(&numHeaps, "heaps", 4, "Number of heaps to register")
	cmd.Flags().IntVar(&numAllocs, "allocs", 1000, "Allocations reported per heap")
	cmd.Flags().Uint64Var(&interval, "interval", 0, "Sampling interval in bytes (0 = always sample)")
	return cmd
}
