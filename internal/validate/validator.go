// Package validate checks deploy requests before anything touches the host.
package validate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sqpplus/internal/domain"
	"strconv"
	"strings"
	"unicode"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Downloaders in order of preference.
var Downloaders = []string{"wget", "curl"}

const (
	ArchiveTool = "tar"
	SessionTool = "screen"
)

type PathLooker interface {
	LookPath(name string) (string, error)
}

type Validator struct {
	look PathLooker
}

func New(look PathLooker) *Validator {
	return &Validator{look: look}
}

// ValidName reports whether name is safe to use in paths, scripts and as a
// screen session name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Validate runs every check and returns either a typed request or a
// *domain.ValidationError listing all failures.
func (v *Validator) Validate(raw domain.RawDeployRequest) (*domain.DeployRequest, error) {
	verr := &domain.ValidationError{}

	if raw.Name == "" {
		verr.Add("name", "Server Name is required.")
	} else if !ValidName(raw.Name) {
		verr.Add("name", "Server Name can only contain letters, numbers, and underscores.")
	}

	if raw.BasePath == "" {
		verr.Add("basePath", "Base Installation Path is required.")
	} else if !filepath.IsAbs(raw.BasePath) {
		verr.Add("basePath", "Base Installation Path must be an absolute path (e.g., /home/user/...).")
	}

	if raw.RconSecret == "" {
		verr.Add("rconSecret", "RCON Password is required.")
	} else if strings.IndexFunc(raw.RconSecret, unicode.IsControl) >= 0 {
		verr.Add("rconSecret", "RCON Password must not contain line breaks or other control characters.")
	}

	gamePort := parsePort(verr, "gamePort", "Game Port", raw.GamePort)
	queryPort := parsePort(verr, "queryPort", "Query Port", raw.QueryPort)

	maxPlayers, err := strconv.Atoi(strings.TrimSpace(raw.MaxPlayers))
	if err != nil {
		verr.Add("maxPlayers", "Max Players must be a valid number.")
	} else if maxPlayers <= 0 {
		verr.Add("maxPlayers", "Max Players must be a positive number.")
	}

	deps := v.CheckDependencies()
	if len(deps.Missing) > 0 {
		verr.Missing = deps.Missing
		verr.Add("dependencies", deps.Message())
	}

	if !verr.Empty() {
		return nil, verr
	}

	return &domain.DeployRequest{
		Name:       raw.Name,
		BasePath:   filepath.Clean(raw.BasePath),
		GamePort:   gamePort,
		QueryPort:  queryPort,
		MaxPlayers: maxPlayers,
		RconSecret: raw.RconSecret,
		Downloader: deps.Downloader,
	}, nil
}

func parsePort(verr *domain.ValidationError, field, label, value string) int {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		verr.Add(field, label+" must be a valid number.")
		return 0
	}
	if port < 1 || port > 65535 {
		verr.Add(field, label+" must be between 1 and 65535.")
	}
	return port
}

type DependencyReport struct {
	Downloader string   `json:"downloader"`
	Missing    []string `json:"missing"`
}

// CheckDependencies resolves the external tools the workflow needs. The
// first downloader found wins and later alternatives are not looked up.
func (v *Validator) CheckDependencies() DependencyReport {
	report := DependencyReport{Missing: []string{}}

	for _, name := range Downloaders {
		if _, err := v.look.LookPath(name); err == nil {
			report.Downloader = name
			break
		}
	}
	if report.Downloader == "" {
		report.Missing = append(report.Missing, strings.Join(Downloaders, " or "))
	}

	for _, name := range []string{ArchiveTool, SessionTool} {
		if _, err := v.look.LookPath(name); err != nil {
			report.Missing = append(report.Missing, name)
		}
	}

	return report
}

// Message renders the aggregated missing-dependency error with an install hint.
func (r DependencyReport) Message() string {
	if len(r.Missing) == 0 {
		return ""
	}
	pkgs := strings.Join(r.Missing, " ")
	return fmt.Sprintf(
		"Missing required system dependencies: %s. Please install them using your system's package manager (e.g., 'sudo apt update && sudo apt install %s' or 'sudo yum install %s').",
		strings.Join(r.Missing, ", "), pkgs, pkgs,
	)
}
