// Package cmd defines and implements the CLI commands for the aggregator
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregator",
		Short: "Background pipeline for the news aggregation service.",
		Long: `aggregator runs the background pipeline of the news aggregation
service: it harvests configured RSS feeds, summarizes new articles with a
language model, groups recent coverage into stories, and emails daily
digests to subscribed users. Stages run on independent schedules and
coordinate through lease locks in the shared cache so multiple instances
never run the same stage concurrently.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment only)")
	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
