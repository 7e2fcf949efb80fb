package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the scrape dashboard
func (m *Model) View() string {
	sections := []string{
		titleStyle.Render("LinkReach follower scrape"),
		m.renderStats(),
		m.renderRecent(),
		m.renderLogs(),
	}
	if !m.done {
		sections = append(sections, helpStyle.Render("q: stop and keep collected profiles"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderStats() string {
	status := m.spinner.View() + " scraping"
	switch {
	case m.done && m.err != nil:
		status = errorStyle.Render("failed")
	case m.done && m.result != nil && m.result.Cancelled:
		status = warningStyle.Render("stopped")
	case m.done:
		status = successStyle.Render("done")
	case m.cancelling:
		status = warningStyle.Render("stopping")
	}

	target := "?"
	if t := m.target(); t > 0 {
		target = fmt.Sprintf("%d", t)
	}

	rows := []string{
		stat("Profile", m.rootURL),
		stat("Status", status),
		stat("Collected", fmt.Sprintf("%d / %s", m.collected, target)),
		stat("Pages", fmt.Sprintf("%d", m.pages)),
		stat("Elapsed", FormatDuration(time.Since(m.startTime))),
		m.bar.ViewAs(m.Percent()),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func stat(label, value string) string {
	return statsLabelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + statsValueStyle.Render(value)
}

func (m *Model) renderRecent() string {
	if len(m.recent) == 0 {
		return panelStyle.Render(profileDetailStyle.Render("No profiles yet"))
	}
	lines := make([]string, 0, len(m.recent))
	for _, p := range m.recent {
		name := p.Name
		if name == "" {
			name = p.ProfileURL
		}
		line := profileNameStyle.Render(name)
		if p.Headline != "" {
			line += " " + profileDetailStyle.Render(truncate(p.Headline, 50))
		}
		lines = append(lines, line)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderLogs() string {
	if len(m.logs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		lines = append(lines, logTimestampStyle.Render(l.Time.Format("15:04:05"))+" "+levelStyle(l.Level).Render(l.Message))
	}
	return strings.Join(lines, "\n")
}

// FormatDuration renders d as m:ss, or h:mm:ss past one hour
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
