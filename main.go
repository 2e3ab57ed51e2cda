package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketing",
	Short: "Commerce marketing agent orchestrator",
	Long: `marketing routes Korean chat messages to analysis agents
(trend, ad copy, segment, review, competitor, synthesis) and writes
downloadable HTML reports.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, chatCmd, searchCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
