package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/karlcbalzer/Parallbrid/pkg/gotm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

func newBenchCmd() *cobra.Command {
	var workers, iterations int
	var sharedKey bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure commit throughput under a chosen contention pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			counters := make([]int64, workers)

			start := time.Now()
			var g errgroup.Group
			for w := 0; w < workers; w++ {
				w := w
				g.Go(func() error {
					defer itm.ReleaseThread()
					idx := w
					if sharedKey {
						idx = 0
					}
					for i := 0; i < iterations; i++ {
						err := gotm.Atomically(func(tx *gotm.Tx) error {
							v := gotm.Load(tx, &counters[idx])
							gotm.Store(tx, &counters[idx], v+1)
							return nil
						})
						if err != nil {
							return err
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			elapsed := time.Since(start)
			commits := int64(workers * iterations)
			fmt.Printf("%d commits in %s (%.0f commits/sec)\n", commits, elapsed, float64(commits)/elapsed.Seconds())
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent goroutines")
	cmd.Flags().IntVar(&iterations, "iterations", 5000, "increments performed by each worker")
	cmd.Flags().BoolVar(&sharedKey, "shared-key", false, "have every worker contend on the same counter instead of disjoint ones")
	return cmd
}
