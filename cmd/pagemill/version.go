package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pagemill version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pagemill %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
