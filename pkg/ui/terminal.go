// Package ui holds the colored terminal output helpers used by the CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Banner is printed above interactive commands
const Banner = `
  _     _       _    ____                 _
 | |   (_)_ __ | | _|  _ \ ___  __ _  ___| |__
 | |   | | '_ \| |/ / |_) / _ \/ _' |/ __| '_ \
 | |___| | | | |   <|  _ <  __/ (_| | (__| | | |
 |_____|_|_| |_|_|\_\_| \_\___|\__,_|\___|_| |_|
        LinkedIn outreach campaigns
`

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

// colorEnabled is false when output is not a terminal or NO_COLOR is set
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces colored output on or off
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
	Bold    = colorize("\033[1m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner with color
func PrintBanner() {
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}

// Bar renders a fixed-width bar for a percentage between 0 and 100
func Bar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// StatusColor colors a campaign or result status
func StatusColor(status string) string {
	switch status {
	case "active", "success":
		return Green(status)
	case "paused", "skipped":
		return Yellow(status)
	case "failed", "failure":
		return Red(status)
	case "completed":
		return Cyan(status)
	default:
		return status
	}
}
