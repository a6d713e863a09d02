package sdk

import "time"

type Instance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BasePath         string    `json:"basePath"`
	InstancePath     string    `json:"instancePath"`
	GamePort         int       `json:"gamePort"`
	QueryPort        int       `json:"queryPort"`
	MaxPlayers       int       `json:"maxPlayers"`
	SessionName      string    `json:"sessionName"`
	RconSecretHashed bool      `json:"rconSecretHashed"`
	CreatedAt        time.Time `json:"created_at"`
}

// DeployRequest carries the fields as entered; blank ports and player count
// are filled with the daemon defaults.
type DeployRequest struct {
	Name       string `json:"name"`
	BasePath   string `json:"basePath"`
	GamePort   string `json:"gamePort,omitempty"`
	QueryPort  string `json:"queryPort,omitempty"`
	MaxPlayers string `json:"maxPlayers,omitempty"`
	RconSecret string `json:"rconSecret"`
	RequestID  string `json:"requestId,omitempty"`
}

type ProgressEvent struct {
	RequestID string `json:"requestId"`
	Instance  string `json:"instance"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
}

type DependencyReport struct {
	Downloader string   `json:"downloader"`
	Missing    []string `json:"missing"`
	Message    string   `json:"message,omitempty"`
}
