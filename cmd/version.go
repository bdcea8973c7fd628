package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
)

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqtracker %s %s\n", consts.BuildVersion, consts.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
