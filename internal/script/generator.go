// Package script renders the text artifacts written for an instance. Every
// function is pure: equal inputs give byte-identical output.
package script

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SquadAppID is the Steam app id of the Squad dedicated server.
const SquadAppID = 403240

func ServerConfig(gamePort, queryPort int) string {
	return fmt.Sprintf("Port=%d\nQueryPort=%d\n", gamePort, queryPort)
}

func RconConfig(secret string) string {
	return fmt.Sprintf("Password=%s\n", secret)
}

// UpdateScript is a SteamCMD runscript installing the server next to the
// steamcmd directory, in ../<name>.
func UpdateScript(name string) string {
	var b strings.Builder
	b.WriteString("@ShutdownOnFailedCommand 1\n")
	b.WriteString("@NoPromptForPassword 1\n")
	fmt.Fprintf(&b, "force_install_dir ../%s\n", name)
	b.WriteString("login anonymous\n")
	fmt.Fprintf(&b, "app_update %d validate\n", SquadAppID)
	b.WriteString("quit\n")
	return b.String()
}

type LaunchParams struct {
	GamePort   int
	QueryPort  int
	MaxPlayers int
}

// StartScript updates the server through SteamCMD and then execs it in the
// foreground, so the owning screen session lives exactly as long as the
// server process.
func StartScript(l Layout, p LaunchParams) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("echo \"Running SteamCMD update...\"\n")
	fmt.Fprintf(&b, "cd %s || exit 1\n", Quote(l.SteamCMDDir))
	fmt.Fprintf(&b, "./%s +runscript %s || exit 1\n", SteamCMDExeName, Quote(filepath.Base(l.UpdateScript)))
	b.WriteString("echo \"SteamCMD update finished. Starting server...\"\n")
	fmt.Fprintf(&b, "cd %s || exit 1\n", Quote(l.InstanceDir))
	fmt.Fprintf(&b, "if [ -f %s ]; then\n", Quote(l.ServerExe))
	fmt.Fprintf(&b, "    chmod +x %s\n", Quote(l.ServerExe))
	b.WriteString("    echo \"Starting Squad Server...\"\n")
	fmt.Fprintf(&b, "    exec ./%s Port=%d QueryPort=%d FIXEDMAXPLAYERS=%d RANDOM=NONE -log\n",
		ServerExeName, p.GamePort, p.QueryPort, p.MaxPlayers)
	b.WriteString("else\n")
	fmt.Fprintf(&b, "    echo \"Error: Server executable not found after update:\" %s\n", Quote(l.ServerExe))
	b.WriteString("    exit 1\n")
	b.WriteString("fi\n")
	return b.String()
}

// Quote wraps s in single quotes for POSIX shells.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
