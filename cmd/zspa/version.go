package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0x-stone/zspa"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of zspa",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "zspa version %s\n", strings.TrimSpace(zspa.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
