package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the daemon host for the tools deployments need",
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleDoctor()
	},
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func handleDoctor() error {
	report, err := Client.Dependencies()
	if err != nil {
		return fmt.Errorf("error checking dependencies: %w", err)
	}

	fmt.Println("\n--- SYSTEM DEPENDENCIES ---")
	if report.Downloader != "" {
		fmt.Printf("Downloader: %s\n", report.Downloader)
	}

	if len(report.Missing) == 0 {
		color.Green("All required tools are installed.")
		return nil
	}

	color.Red("Missing: %s", strings.Join(report.Missing, ", "))
	if report.Message != "" {
		fmt.Println(report.Message)
	}
	return fmt.Errorf("%d missing dependencies", len(report.Missing))
}
