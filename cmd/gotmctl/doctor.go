package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karlcbalzer/Parallbrid/pkg/itm"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print the effective runtime configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := itm.EffectiveConfig()
			methodGroup := os.Getenv("ITM_DEFAULT_METHOD_GROUP")
			if methodGroup == "" {
				methodGroup = "invalbrid (default)"
			}
			fmt.Printf("library version:  %s\n", itm.LibraryVersion())
			fmt.Printf("method group:      %s\n", methodGroup)
			fmt.Printf("sw_restarts:       %d\n", cfg.SWRestarts)
			fmt.Printf("hw_restarts:       %d\n", cfg.HWRestarts)
			if path := os.Getenv("ITM_CONFIG_FILE"); path != "" {
				fmt.Printf("config file:       %s\n", path)
			}
			if os.Getenv("ITM_DEBUG") != "" {
				fmt.Println("debug logging:     enabled")
			}
			return nil
		},
	}
}
