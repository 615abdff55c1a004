package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd follows the teacher's cmd/grpd/root.go layout: a thin cobra
// root with one subcommand per protocol, each owning its own flags.
var rootCmd = &cobra.Command{
	Use:   "bgpctl [command]",
	Short: "libbgp example host",
}

func init() {
	bgpCmd.Flags().IntP("log", "l", 1, "log level")
	bgpCmd.Flags().StringP("log-path", "o", "", "log output path")
	bgpCmd.Flags().StringP("config", "c", "", "configuration file path")

	smoketestCmd.Flags().StringP("config", "c", "", "configuration file path")

	rootCmd.AddCommand(
		bgpCmd,
		smoketestCmd,
		ribCmd,
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("bgpctl error\n\n%s", err)
		os.Exit(1)
	}
}
