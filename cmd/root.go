// Package cmd contains the command line interface of the application
package cmd

import (
	"bitwise74/model-vault/app"
	"bitwise74/model-vault/config"
	"bitwise74/model-vault/internal"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewRootCmd builds the whole command tree. Every call returns a fresh
// tree so flags never leak between runs.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "modelvault",
		Short: "Model Vault - upload, catalog and serve 3D models",
		Long: styleTitle.Render("Model Vault") + "\n\n" +
			"A backend for uploading, browsing and downloading 3D models\n" +
			"with operator tooling to keep the catalog and storage in sync.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Setup(cfgPath); err != nil {
				return fmt.Errorf("failed to load config, %w", err)
			}

			return app.MakeLogger(viper.GetString("app.log_level"), viper.GetString("app.log_format"))
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to the config file (default ./config.toml)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newIntegrityCmd(),
	)

	return root
}

// Execute runs the root command with the process arguments
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// withDeps builds the dependencies for one command and releases the
// database once fn returns
func withDeps(ctx context.Context, fn func(d *internal.Deps) error) error {
	d, err := app.NewDeps(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if sqlDB, err := d.DB.DB(); err == nil {
			sqlDB.Close()
		}
		zap.L().Sync()
	}()

	return fn(d)
}
