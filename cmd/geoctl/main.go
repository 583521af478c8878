package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/geoctl/internal/logging"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "geoctl",
		Short:         "Map resource orchestration engine and reference store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "geoctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newStoreCmd(), newConfigCmd())
}
