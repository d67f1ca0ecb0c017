package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexhughson/reflo/internal/build"
)

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `reflo version`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(build.Version)
		},
	}
}
