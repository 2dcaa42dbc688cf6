package cmd

import (
	"bitwise74/model-vault/db"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			driver := viper.GetString("db.driver")

			gdb, err := db.New(driver, viper.GetString("db.dsn"))
			if err != nil {
				return err
			}

			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := db.Migrate(gdb); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatSuccess(fmt.Sprintf("Migrated %s database", driver)))
			return nil
		},
	}
}
