// Command gotmctl is a small operator-facing CLI around the runtime: it
// runs synthetic transactional workloads against an in-process counter
// array so the dispatch-selection and retry behavior can be exercised
// and observed without writing Go code, the way cmd/vcs drives the
// library it wraps.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:     "gotmctl",
		Short:   "Exercise and inspect the Invalbrid-style TM runtime",
		Long:    "gotmctl drives synthetic transactional workloads through the runtime in pkg/gotm, for manual testing and benchmarking of its dispatch-selection and retry behavior.",
		Version: "1.0.0-invalbrid",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newDoctorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
