/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// initCmd creates the data layout and the default administrator.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create data directories and seed the default admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		portal, err := server.NewPortal(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer portal.Close()

		created, err := portal.SeedAdmin(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q\n", cfg.Admin.Username)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "admin already present")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
