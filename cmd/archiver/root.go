package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Archive Zoom cloud recordings to Google Drive",
	Long: `archiver is a scheduled batch job that pulls cloud recordings from the
Zoom API, uploads each media file into a year/month/meeting folder tree on
Google Drive (or a GCS bucket), remembers what it already archived, and
deletes provider-side recordings past the retention window.

It runs to completion and exits; scheduling belongs to cron or Cloud
Scheduler. Run exactly one instance at a time: the run state assumes a
single writer.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional; env vars also work)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
