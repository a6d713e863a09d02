package cmd

import (
	"fmt"
	"os"
	"sqpplus/pkg/sdk"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	Client  *sdk.Client
	BaseURL string
)

var RootCmd = &cobra.Command{
	Use:   "sqpplus-cli",
	Short: "CLI for the SQP Plus game server provisioner",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Client = sdk.NewClient(BaseURL)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(port int) {
	RootCmd.PersistentFlags().StringVar(&BaseURL, "url", fmt.Sprintf("http://localhost:%d", port), "URL of the SQP Plus daemon")

	if err := RootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
