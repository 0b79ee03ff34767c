package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/pagecheck-service/internal/verifier"
)

const (
	reportBoxWidth = 72
	titleColumn    = 40
)

var (
	passColor = lipgloss.Color("42")
	failColor = lipgloss.Color("196")
	dimColor  = lipgloss.Color("246")
)

func renderReport(r *verifier.Report, driver string) string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	dimStyle := lipgloss.NewStyle().Foreground(dimColor)
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(reportBoxWidth)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Scenario %s", r.Scenario)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s via %s in %s", r.BaseURL, driver, r.Duration.Round(time.Millisecond))))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("STEPS"))
	b.WriteString("\n")
	done := lipgloss.NewStyle().Foreground(passColor).Render("✓")
	for _, name := range r.Completed {
		fmt.Fprintf(&b, "  %s %s\n", done, name)
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("- "+name+" (skipped)"))
	}

	if len(r.Snapshots) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("PAGES"))
		b.WriteString("\n")
		for _, snap := range r.Snapshots {
			title, _ := snap.FirstTitle()
			date, _ := snap.FirstDate()
			fmt.Fprintf(&b, "  %-4s %-*s %s %s\n",
				fmt.Sprintf("%d", snap.PageIndex),
				titleColumn, truncate(title, titleColumn),
				date,
				dimStyle.Render(fmt.Sprintf("(%d items)", len(snap.Titles))),
			)
		}
	}

	for _, a := range r.Annotations {
		b.WriteString("\n")
		b.WriteString(borderStyle.Render(titleStyle.Render(a.Type) + "\n" + a.Description))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if r.Passed {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(passColor).Render("PASSED"))
	} else {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(failColor).Render("FAILED"))
		if r.Err != nil {
			fmt.Fprintf(&b, " [%s] %s", verifier.ErrorKind(r.Err), r.Err)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
