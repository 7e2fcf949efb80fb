// Package tui renders a live view of a follower scrape.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"linkreach/pkg/models"
	"linkreach/pkg/scraper"
)

const (
	maxRecentProfiles = 8
	maxLogMessages    = 6
)

// LogMessage is one line of the activity panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the bubbletea model of a running scrape
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	rootURL     string
	maxProfiles int
	startTime   time.Time

	collected  int
	totalCount int
	pages      int
	recent     []models.Profile
	logs       []LogMessage

	cancelling bool
	done       bool
	result     *scraper.Result
	err        error

	// onCancel is called once when the user asks to stop
	onCancel func()
	width    int
}

// NewModel creates the model for a scrape of rootURL capped at maxProfiles
func NewModel(rootURL string, maxProfiles int, onCancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statsLabelStyle

	bar := progress.New(progress.WithSolidFill(string(linkedInBlue)))
	bar.Width = 40

	return &Model{
		spinner:     s,
		bar:         bar,
		rootURL:     rootURL,
		maxProfiles: maxProfiles,
		startTime:   time.Now(),
		onCancel:    onCancel,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// target is the number of profiles the scrape can reach
func (m *Model) target() int {
	t := m.maxProfiles
	if m.totalCount > 0 && (t <= 0 || m.totalCount < t) {
		t = m.totalCount
	}
	return t
}

// Percent returns how far the scrape is towards its target, from 0 to 1
func (m *Model) Percent() float64 {
	t := m.target()
	if t <= 0 {
		return 0
	}
	p := float64(m.collected) / float64(t)
	if p > 1 {
		return 1
	}
	return p
}

func (m *Model) applyPage(p scraper.Page) {
	m.pages = p.Number
	m.collected = p.Collected
	if p.TotalCount > 0 {
		m.totalCount = p.TotalCount
	}
	m.recent = append(m.recent, p.Profiles...)
	if len(m.recent) > maxRecentProfiles {
		m.recent = m.recent[len(m.recent)-maxRecentProfiles:]
	}
}

// AddLogMessage appends to the activity panel, dropping the oldest lines
func (m *Model) AddLogMessage(level, message string) {
	m.logs = append(m.logs, LogMessage{Time: time.Now(), Level: level, Message: message})
	if len(m.logs) > maxLogMessages {
		m.logs = m.logs[len(m.logs)-maxLogMessages:]
	}
}

// Result returns the final scrape result once the scrape has finished
func (m *Model) Result() (*scraper.Result, error) {
	return m.result, m.err
}
