package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/erwt/internal/paths"
)

var userdataCmd = &cobra.Command{
	Use:   "userdata",
	Short: "Print the resolved user data directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := paths.UserDataDir(cfg.AppName, cfg.UserDataDir)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
		return err
	},
}

func init() {
	rootCmd.AddCommand(userdataCmd)
}
