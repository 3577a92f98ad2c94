// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

import "github.com/charmbracelet/lipgloss"

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Teal   = lipgloss.Color("#0E9384")
)

// ArchColor returns the accent color used for passes of the named architecture.
func ArchColor(arch string) lipgloss.Color {
	switch arch {
	case "arm64":
		return Teal
	case "x86_64":
		return Iris
	default:
		return Slate
	}
}

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Arrow   = "→"
	Dot     = "●"
)
