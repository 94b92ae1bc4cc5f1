package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderAssembleHelp renders the assemble command's examples.
func renderAssembleHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginTop(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))

	commandStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	commentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Examples"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Build an archive from a plan"))
	b.WriteString("\n")
	b.WriteString("  " + commandStyle.Render("slic3mf assemble plan.yaml"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Plan format"))
	b.WriteString("\n")
	for _, line := range []string{
		"output: combined.3mf",
		"objects:",
		"  - name: bracket",
		"    count: 2",
		"    config:",
		"      fill_density: 20%",
		"    parts:",
		"      - name: body",
		"        file: body.stl",
		"      - name: stiffener",
		"        file: stiffener.stl",
		"        type: ParameterModifier",
	} {
		b.WriteString("  " + commandStyle.Render(line) + "\n")
	}
	b.WriteString("\n")
	b.WriteString("  " + commentStyle.Render("Parts may be .stl files or the first mesh of another .3mf.") + "\n")

	return b.String()
}
