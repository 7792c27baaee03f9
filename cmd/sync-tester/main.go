// Command sync-tester drives a light ring from the timing core, measures an
// incoming video sync signal and reports it over HTTP and MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var configPath, logLevel string
	root := &cobra.Command{
		Use:           "sync-tester",
		Short:         "Video sync test pattern generator and sync monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd(&configPath, &logLevel))
	root.AddCommand(printStateCmd(&configPath))
	root.AddCommand(statusCmd())
	root.SetOut(os.Stdout)
	return root
}
