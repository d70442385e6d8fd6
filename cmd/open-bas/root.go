package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:               "open-bas",
	Short:             "Open-BAS runs the connectors of the breach and attack simulation platform.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrapCommand,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, reconcileCmd, migrateCmd, connectorsCmd)
}
