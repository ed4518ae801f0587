/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/server"
	"github.com/admitportal/apiserver/internal/services"
	"github.com/spf13/cobra"
)

// backupCmd represents the backup command.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and list data file backups",
}

var backupCreateCmd = &cobra.Command{
	Use:       "create [document...]",
	Short:     "Snapshot documents (all of them when none are named)",
	ValidArgs: services.BackupDocuments,
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		portal, err := server.NewPortal(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer portal.Close()

		if len(args) == 0 {
			args = services.BackupDocuments
		}
		for _, name := range args {
			file, err := portal.Admin.Backup(cmd.Context(), name)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), file)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list [document]",
	Short: "List backups, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		portal, err := server.NewPortal(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer portal.Close()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		backups, err := portal.Admin.Backups(name)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tDOCUMENT\tCREATED\tSIZE")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", b.File, b.Document, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Size)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
}
