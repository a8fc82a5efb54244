package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply every migrations/*.up.sql file in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if dir == "" {
				dir = repository.FindMigrationsDir()
			}
			applied, err := repository.RunMigrations(cmd.Context(), a.DB, dir)
			if err != nil {
				return err
			}
			for _, f := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default: nearest ./migrations)")
	return cmd
}
