package script

import (
	"path/filepath"
	"strings"
)

const (
	SteamCMDDirName  = "steamcmd"
	SteamCMDExeName  = "steamcmd.sh"
	ServerExeName    = "SquadGameServer.sh"
	RconConfigName   = "Rcon.cfg"
	ServerConfigName = "Server.cfg"
)

// Layout is the on-disk arrangement of one instance under its base path.
type Layout struct {
	BasePath     string
	Name         string
	SteamCMDDir  string
	SteamCMDExe  string
	UpdateScript string
	InstanceDir  string
	ConfigDir    string
	RconConfig   string
	ServerConfig string
	ServerExe    string
	StartScript  string
}

func NewLayout(basePath, name string) Layout {
	steamDir := filepath.Join(basePath, SteamCMDDirName)
	instanceDir := filepath.Join(basePath, name)
	configDir := filepath.Join(instanceDir, "SquadGame", "ServerConfig")

	return Layout{
		BasePath:     basePath,
		Name:         name,
		SteamCMDDir:  steamDir,
		SteamCMDExe:  filepath.Join(steamDir, SteamCMDExeName),
		UpdateScript: filepath.Join(steamDir, "update_"+name+".txt"),
		InstanceDir:  instanceDir,
		ConfigDir:    configDir,
		RconConfig:   filepath.Join(configDir, RconConfigName),
		ServerConfig: filepath.Join(configDir, ServerConfigName),
		ServerExe:    filepath.Join(instanceDir, ServerExeName),
		StartScript:  filepath.Join(basePath, "start_"+name+".sh"),
	}
}

// SharesInstaller reports whether the instance directory is the shared
// steamcmd directory or contains it.
func (l Layout) SharesInstaller() bool {
	return within(l.SteamCMDDir, l.InstanceDir)
}

// OwnedPaths lists what a purge of this instance may delete. The shared
// steamcmd directory is never among them; the instance's own update script
// inside it is.
func (l Layout) OwnedPaths() []string {
	var paths []string
	if !l.SharesInstaller() && !within(l.InstanceDir, l.SteamCMDDir) {
		paths = append(paths, l.InstanceDir)
	}
	return append(paths, l.StartScript, l.UpdateScript)
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
