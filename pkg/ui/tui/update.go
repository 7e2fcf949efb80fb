package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"linkreach/pkg/scraper"
)

// PageMsg reports one fetched page
type PageMsg struct {
	Page scraper.Page
}

// DoneMsg reports the end of the scrape
type DoneMsg struct {
	Result *scraper.Result
	Err    error
}

// LogMsg adds a line to the activity panel
type LogMsg struct {
	Level   string
	Message string
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 60 {
			m.bar.Width = w
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PageMsg:
		m.applyPage(msg.Page)
		m.AddLogMessage("INFO", fmt.Sprintf("Page %d: +%d profiles", msg.Page.Number, len(msg.Page.Profiles)))
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		if msg.Result != nil {
			m.collected = len(msg.Result.Profiles)
		}
		switch {
		case msg.Err != nil:
			m.AddLogMessage("ERROR", msg.Err.Error())
		case msg.Result != nil && msg.Result.Cancelled:
			m.AddLogMessage("WARN", "Scrape stopped")
		default:
			m.AddLogMessage("SUCCESS", "Scrape finished")
		}
		return m, tea.Quit

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input. Stopping waits for the scrape to
// hand back what it collected.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if m.done {
			return m, tea.Quit
		}
		if !m.cancelling {
			m.cancelling = true
			m.AddLogMessage("WARN", "Stopping after the current page...")
			if m.onCancel != nil {
				m.onCancel()
			}
		}
	}
	return m, nil
}
