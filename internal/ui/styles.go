package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorAlert  = 203 // red
	colorNotify = 179 // amber
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderAction colors a rule action label: ALERT red, NOTIFY amber,
// anything else muted.
func RenderAction(action string) string {
	switch action {
	case "ALERT":
		return render(colorAlert, action)
	case "NOTIFY":
		return render(colorNotify, action)
	default:
		return render(colorMuted, action)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
