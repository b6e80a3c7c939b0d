// Package cmd defines the CLI commands for the omnidocs executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "omnidocs",
		Short: "Crawl a documentation site and convert it to Markdown.",
		Long: `omnidocs crawls a documentation site within a bounded scope, converts
each page's main content to Markdown and assembles an ordered combined
document. Run "serve" for the API service or "crawl" for a one-shot
operator run.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
