package main

import (
	"fmt"

	"github.com/flemzord/tgcourier/pkg/app"
	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tgcourier with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			return app.Run(cmd.Context(), app.RunParams{
				ConfigPath: cfgPath,
				DataDir:    dataDir,
				LogOutput:  cmd.ErrOrStderr(),
			})
		},
	}
	cmd.Flags().String("data-dir", "", "Override the data directory")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Prepare(app.RunParams{
				ConfigPath: args[0],
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			application, err := env.Load(nil)
			if err != nil {
				return err
			}
			defer application.Stop()

			ids := application.Modules()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
