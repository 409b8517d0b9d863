// Package main is the entry point for the tgcourier CLI.
package main

import (
	"fmt"
	"os"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/telemetry"
	"github.com/spf13/cobra"

	_ "github.com/flemzord/tgcourier/internal/gateway"
	_ "github.com/flemzord/tgcourier/modules/channel/telegram"
	_ "github.com/flemzord/tgcourier/modules/stats/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	telemetry.Version = version
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tgcourier",
		Short:         "Outbound Telegram delivery for the Jira bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), startCmd(), configCmd(), sendCmd(), editCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tgcourier %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}
