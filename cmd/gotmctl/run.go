package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/karlcbalzer/Parallbrid/pkg/gotm"
	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

func newRunCmd() *cobra.Command {
	var workers, iterations int
	var preferHW bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a small concurrent counter-increment workload through the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			counters := make([]int64, workers)

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				w := w
				g.Go(func() error {
					defer itm.ReleaseThread()
					for i := 0; i < iterations; i++ {
						opts := []gotm.Option{}
						if preferHW {
							opts = append(opts, gotm.PreferHardware())
						}
						err := gotm.Atomically(func(tx *gotm.Tx) error {
							v := gotm.Load(tx, &counters[w])
							gotm.Store(tx, &counters[w], v+1)
							return nil
						}, opts...)
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

			var total int64
			for i, c := range counters {
				fmt.Printf("worker %d: %d\n", i, c)
				total += c
			}
			fmt.Printf("total: %d\n", total)
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent goroutines")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "increments performed by each worker")
	cmd.Flags().BoolVar(&preferHW, "prefer-hardware", false, "opt into the hardware dispatches before falling back to software")
	return cmd
}
