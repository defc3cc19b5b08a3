package cmd

import (
	"fmt"

	"github.com/go-spatial/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}
