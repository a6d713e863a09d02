package domain

import "time"

type ServerInstance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BasePath         string    `json:"basePath"`
	InstancePath     string    `json:"instancePath"`
	GamePort         int       `json:"gamePort"`
	QueryPort        int       `json:"queryPort"`
	MaxPlayers       int       `json:"maxPlayers"`
	SessionName      string    `json:"sessionName"`
	RconSecret       string    `json:"-"`
	RconSecretHashed bool      `json:"rconSecretHashed"`
	CreatedAt        time.Time `json:"created_at"`
}

// RawDeployRequest is what a caller submits before validation. Every field is
// kept as entered so it can be echoed back when validation fails.
type RawDeployRequest struct {
	Name       string `json:"name"`
	BasePath   string `json:"basePath"`
	GamePort   string `json:"gamePort"`
	QueryPort  string `json:"queryPort"`
	MaxPlayers string `json:"maxPlayers"`
	RconSecret string `json:"rconSecret"`
}

const (
	DefaultGamePort   = "7787"
	DefaultQueryPort  = "27165"
	DefaultMaxPlayers = "80"
)

// WithDefaults fills blank numeric fields with the form defaults.
func (r RawDeployRequest) WithDefaults() RawDeployRequest {
	if r.GamePort == "" {
		r.GamePort = DefaultGamePort
	}
	if r.QueryPort == "" {
		r.QueryPort = DefaultQueryPort
	}
	if r.MaxPlayers == "" {
		r.MaxPlayers = DefaultMaxPlayers
	}
	return r
}

type DeployRequest struct {
	Name       string
	BasePath   string
	GamePort   int
	QueryPort  int
	MaxPlayers int
	RconSecret string
	// Downloader is the download tool found on PATH ("wget" or "curl").
	Downloader string
}

type ProgressEvent struct {
	RequestID string `json:"requestId"`
	Instance  string `json:"instance"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
}
