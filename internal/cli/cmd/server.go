package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sqpplus/internal/cli/ui"
	"sqpplus/internal/config"
	"sqpplus/pkg/sdk"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const progressGrace = 5 * time.Second

var deployReq sdk.DeployRequest

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install and start a new server instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := deployReq
		if req.RconSecret == "" {
			req.RconSecret = os.Getenv("SQPPLUS_RCON_PASSWORD")
		}
		return handleDeploy(req)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleList()
	},
}

var showCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleShow(args[0])
	},
}

var deletePurge bool

var deleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Stop an instance's session and remove it from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handleDelete(args[0], deletePurge)
	},
}

func init() {
	f := deployCmd.Flags()
	f.StringVar(&deployReq.Name, "name", "", "Server name (letters, numbers, underscores)")
	f.StringVar(&deployReq.BasePath, "base-path", config.DefaultServersPath(), "Absolute installation path")
	f.StringVar(&deployReq.GamePort, "game-port", "", "Game port (default 7787)")
	f.StringVar(&deployReq.QueryPort, "query-port", "", "Query port (default 27165)")
	f.StringVar(&deployReq.MaxPlayers, "max-players", "", "Max players (default 80)")
	f.StringVar(&deployReq.RconSecret, "rcon-password", "", "RCON password (or SQPPLUS_RCON_PASSWORD)")
	deployCmd.MarkFlagRequired("name")

	deleteCmd.Flags().BoolVar(&deletePurge, "purge", false, "Also delete the instance directory and its scripts")

	RootCmd.AddCommand(deployCmd, listCmd, showCmd, deleteCmd)
}

func handleDeploy(req sdk.DeployRequest) error {
	req.RequestID = uuid.New().String()

	wsURL, err := Client.GetWebSocketURL(fmt.Sprintf("/ws/progress/%s", req.RequestID))
	if err != nil {
		return fmt.Errorf("error parsing base URL: %w", err)
	}

	printer := ui.NewProgressPrinter(req.Name)
	done := make(chan struct{})

	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		color.Yellow("Warning: could not connect to progress stream: %v", err)
		close(done)
	} else {
		defer c.Close()
		go func() {
			defer close(done)
			for {
				_, message, err := c.ReadMessage()
				if err != nil {
					printer.Abort()
					return
				}
				var event sdk.ProgressEvent
				if err := json.Unmarshal(message, &event); err == nil {
					if printer.Handle(event) {
						return
					}
				}
			}
		}()
	}

	inst, deployErr := Client.Deploy(req)
	select {
	case <-done:
	case <-time.After(progressGrace):
		// The daemon answered but never closed the stream.
		c.Close()
		<-done
	}

	if deployErr != nil {
		var apiErr *sdk.APIError
		if errors.As(deployErr, &apiErr) && len(apiErr.Errors) > 0 {
			for _, msg := range apiErr.Errors {
				color.Red("  ✗ %s", msg)
			}
			return fmt.Errorf("deployment request rejected")
		}
		return deployErr
	}

	if c == nil {
		color.Green("Deployment initiated for '%s'.", inst.Name)
	}
	fmt.Println(ui.InstanceDetail(inst))
	return nil
}

func handleList() error {
	servers, err := Client.ListServers()
	if err != nil {
		return fmt.Errorf("error listing servers: %w", err)
	}

	fmt.Println(ui.Title("Server instances"))
	fmt.Println(ui.InstanceTable(servers))
	return nil
}

func handleShow(name string) error {
	inst, err := Client.GetServer(name)
	if err != nil {
		return err
	}
	fmt.Println(ui.InstanceDetail(inst))
	return nil
}

func handleDelete(name string, purge bool) error {
	if err := Client.DeleteServer(name, purge); err != nil {
		return err
	}
	if purge {
		color.Green("Instance '%s' removed and its files deleted.", name)
	} else {
		color.Green("Instance '%s' removed from the catalog. Files were kept.", name)
	}
	return nil
}
