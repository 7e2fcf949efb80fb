package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"linkreach/pkg/scraper"
)

// TUI drives the scrape dashboard. Page, Log and Done may be called from
// the goroutine running the scrape while Run blocks in another.
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a dashboard for a scrape of rootURL. onCancel is called when
// the user asks to stop.
func New(rootURL string, maxProfiles int, onCancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(rootURL, maxProfiles, onCancel)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run blocks until the scrape has been reported done and returns its outcome
func (t *TUI) Run() (*scraper.Result, error) {
	if _, err := t.program.Run(); err != nil {
		return nil, err
	}
	return t.model.Result()
}

// Page reports a fetched page
func (t *TUI) Page(p scraper.Page) {
	t.program.Send(PageMsg{Page: p})
}

// Log adds a line to the activity panel
func (t *TUI) Log(level, message string) {
	t.program.Send(LogMsg{Level: level, Message: message})
}

// Done reports the end of the scrape and makes Run return
func (t *TUI) Done(res *scraper.Result, err error) {
	t.program.Send(DoneMsg{Result: res, Err: err})
}
