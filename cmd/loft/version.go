package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Loft",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "loft version %s\n", strings.TrimSpace(loft.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
