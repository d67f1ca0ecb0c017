package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command when reflo is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "reflo",
	Short: "Reactive, incrementally-correct build engine",
	Long:  "reflo [options] <run|version> [args]",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&cfgFile, "config", "c", "",
		"config file (default is $HOME/.config/reflo/reflo.yaml)",
	)
	registerCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(createRunCommand())
	root.AddCommand(createVersionCommand())
}
