package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, color bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevColor := Output, colorEnabled
	Output = &buf
	SetColor(color)
	t.Cleanup(func() {
		Output = prevOut
		colorEnabled = prevColor
	})
	return &buf
}

func TestPrintHelpersWithoutColor(t *testing.T) {
	buf := capture(t, false)

	PrintInfo("Campaign", "Spring outreach")
	PrintError("Failed to advance", "rate limited")
	PrintSuccess("Done")

	assert.Equal(t, "Campaign: Spring outreach\nFailed to advance: rate limited\nDone\n", buf.String())
}

func TestColorize(t *testing.T) {
	capture(t, true)
	assert.Equal(t, "\033[32mactive\033[0m", StatusColor("active"))
	assert.Equal(t, "unknown", StatusColor("unknown"))

	SetColor(false)
	assert.Equal(t, "failed", StatusColor("failed"))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "██████████", Bar(100, 10))
	assert.Equal(t, "█████░░░░░", Bar(50, 10))
	assert.Equal(t, "░░░░░░░░░░", Bar(-3, 10))
	assert.Equal(t, "██████████", Bar(250, 10))
}
