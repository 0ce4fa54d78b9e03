package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "td",
		Short:        "TaskDesk, the internal task tracker",
		Long:         "TaskDesk tracks tasks with numbered IDs, change history and comments, and announces changes to chat.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newNotifyCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "td %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
