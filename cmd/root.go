/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "Admission document portal API server",
	Long: `Serves the admission document portal: applicant registration,
sessions, document uploads and the support message board.

Data lives in JSON files under DATA_DIR; see the server, init, backup and
events commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) logging.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}
