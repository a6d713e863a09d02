package ui

import (
	"fmt"
	"sqpplus/pkg/sdk"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Bold(true).
			Padding(0, 1).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func Title(s string) string {
	return titleStyle.Render(s)
}

// InstanceTable renders the catalog as a bordered table, newest first as
// returned by the daemon.
func InstanceTable(instances []sdk.Instance) string {
	if len(instances) == 0 {
		return descStyle.Render("No server instances deployed yet.")
	}

	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, []string{
			inst.Name,
			strconv.Itoa(inst.GamePort),
			strconv.Itoa(inst.QueryPort),
			strconv.Itoa(inst.MaxPlayers),
			inst.InstancePath,
			inst.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("NAME", "GAME", "QUERY", "PLAYERS", "PATH", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.Render()
}

// InstanceDetail renders one instance as a key/value box.
func InstanceDetail(inst *sdk.Instance) string {
	secret := "stored as entered"
	if inst.RconSecretHashed {
		secret = "bcrypt hash"
	}

	pairs := [][2]string{
		{"Name", inst.Name},
		{"ID", inst.ID},
		{"Base path", inst.BasePath},
		{"Instance path", inst.InstancePath},
		{"Game port", strconv.Itoa(inst.GamePort)},
		{"Query port", strconv.Itoa(inst.QueryPort)},
		{"Max players", strconv.Itoa(inst.MaxPlayers)},
		{"Screen session", inst.SessionName},
		{"RCON secret", secret},
		{"Created", inst.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s", keyStyle.Render(fmt.Sprintf("%-15s", p[0])), p[1])
	}
	b.WriteString("\n\n")
	b.WriteString(descStyle.Render(fmt.Sprintf("Attach with: screen -r %s", inst.SessionName)))

	return baseStyle.Render(b.String())
}
