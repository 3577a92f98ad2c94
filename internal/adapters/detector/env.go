// Package detector provides environment detection for output mode selection.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents how tool output reaches the user.
type OutputMode int

const (
	// ModeAuto automatically detects the appropriate mode.
	ModeAuto OutputMode = iota
	// ModeInteractive means a terminal is attached: colors and PTY-backed tools.
	ModeInteractive
	// ModeLinear means plain sequential output for logs and CI.
	ModeLinear
)

// DetectEnvironment returns the recommended output mode based on the environment.
// It checks if stdout is a TTY and if CI environment variables are set.
func DetectEnvironment() OutputMode {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return ModeLinear
	}
	return ModeInteractive
}

// ResolveMode applies the user override flag to auto-detection.
// userFlag should be one of: "auto", "linear", "ci", or empty.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "linear", "ci":
		return ModeLinear
	default:
		return autoDetected
	}
}
