package ui

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// quiet suppresses all non-error output when set via SetQuiet.
var quiet bool

// SetQuiet toggles quiet mode. Errors still print.
func SetQuiet(q bool) {
	quiet = q
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
// Decorative output (boxes, banners) is gated on it.
func StdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Println prints an empty line.
func Println() {
	if quiet {
		return
	}
	fmt.Println()
}

// PrintTitle prints a heading.
func PrintTitle(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Println(TitleStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintSuccess prints a success message.
func PrintSuccess(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Println(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message. Not gated by quiet mode.
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Println(WarningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Println(InfoStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintLink prints a labeled URL.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	if quiet {
		return
	}
	fmt.Printf("%s %s\n", DimStyle.Render(label+":"), LinkStyle.Render(url))
}

// PrintBox prints content in a styled box.
//
// Parameters:
//   - title: Box title
//   - content: Box content
func PrintBox(title, content string) {
	if quiet {
		return
	}
	fmt.Println(BoxStyle.Render(BoxTitleStyle.Render(title) + "\n" + content))
}
