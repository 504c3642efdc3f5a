package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"zortoshub/internal/catalog"
	"zortoshub/internal/download"
)

var (
	titleColor     = color.New(color.FgCyan, color.Bold)
	subtitleColor  = color.New(color.FgYellow)
	categoryColor  = color.New(color.FgBlue, color.Bold)
	installedColor = color.New(color.FgGreen)
	progressColor  = color.New(color.FgYellow)
)

func printTitle(w io.Writer) {
	titleColor.Fprintln(w, "\n=== ZortosHub ===")
	subtitleColor.Fprintln(w, "Your Mac App Hub")
}

func statusMarker(s catalog.Status) string {
	if s == catalog.StatusCracked {
		return "🏴‍☠️"
	}
	return "💰"
}

// appLine formats one numbered catalog row.
func appLine(n int, a catalog.App, installed bool) string {
	mark := " "
	if installed {
		mark = "✓"
	}
	return fmt.Sprintf("%s %d. %s %s - %s", mark, n, a.Name, statusMarker(a.Status), a.Description)
}

// pickerLabel formats a catalog row for the interactive picker.
func pickerLabel(a catalog.App, installed bool) string {
	mark := " "
	if installed {
		mark = "✓"
	}
	return fmt.Sprintf("%s [%s] %s %s - %s", mark, a.Category, a.Name, statusMarker(a.Status), a.Description)
}

// printApps lists apps under category headers, numbered from 1.
func printApps(w io.Writer, apps []catalog.App, appsDir string) {
	current := ""
	for i, a := range apps {
		if i == 0 || a.Category != current {
			current = a.Category
			categoryColor.Fprintf(w, "\n%s:\n", current)
		}
		installed := catalog.Installed(appsDir, a)
		line := appLine(i+1, a, installed)
		if installed {
			installedColor.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}

// progressPrinter redraws a single download line.
func progressPrinter(w io.Writer) download.ProgressFunc {
	return func(percent int) {
		progressColor.Fprintf(w, "\r📥 Downloading: %3d%% complete", percent)
		if percent >= 100 {
			fmt.Fprintln(w)
		}
	}
}
