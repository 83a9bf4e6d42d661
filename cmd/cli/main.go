package main

import (
	"fmt"
	"os"

	"github.com/ledgereye/internal/cli/commands"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ledgereye",
	Short: "LedgerEye CLI - scheduled financial report management",
	Long: `LedgerEye CLI is a command-line tool for managing recurring report
schedules: create and inspect schedules, trigger immediate runs, and review
execution history.`,
}

func init() {
	// Add commands
	rootCmd.AddCommand(commands.NewScheduleCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
