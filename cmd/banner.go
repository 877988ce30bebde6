package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
)

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// bannerLine is a label/value pair shown in the startup banner.
type bannerLine struct {
	label string
	value string
}

// printBanner writes the startup banner. It is the only output visible in
// the terminal during normal operation; structured logs go to the log file.
func printBanner(w io.Writer, title string, lines ...bannerLine) {
	body := titleStyle.Render(title)
	for _, l := range lines {
		body += "\n" + labelStyle.Render(l.label) + valueStyle.Render(l.value)
	}
	_, _ = fmt.Fprintln(w, boxStyle.Render(body))
}
