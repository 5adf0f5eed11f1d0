// Package ui renders the human-facing console output of the CLI: the
// banner, status lines, run summaries and the scorecard table. Logs go
// through slog; this package only writes what a person reads.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
)

// ASCII art banner
const bannerArt = `
                     _           _
  ___ __ _ _ __   __| |_   _ ___| |__   ___  _ __
 / __/ _' | '_ \ / _' | | | / __| '_ \ / _ \| '_ \
| (_| (_| | | | | (_| | |_| \__ \ | | | (_) | |_) |
 \___\__,_|_| |_|\__,_|\__, |___/_| |_|\___/| .__/
                       |___/                |_|
`

// Separator line
const bannerSeparator = "________________________________________________"

// Options configures a Console.
type Options struct {
	// Silent suppresses everything except errors.
	Silent bool
	// NoColor forces plain ASCII output.
	NoColor bool
}

// Console writes styled output to one writer.
type Console struct {
	w       io.Writer
	silent  bool
	unicode bool
	st      styles
}

// New creates a console for w. Colors are used only when w is a
// terminal and NoColor is not set.
func New(w io.Writer, opts Options) *Console {
	r := lipgloss.NewRenderer(w)
	if opts.NoColor || !isTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Console{
		w:       w,
		silent:  opts.Silent,
		unicode: !opts.NoColor && unicodeWriter(w),
		st:      newStyles(r),
	}
}

// Stderr returns a console for os.Stderr.
func Stderr(opts Options) *Console {
	return New(os.Stderr, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// icon returns unicode when the console can render it, ascii otherwise.
func (c *Console) icon(unicode, ascii string) string {
	if c.unicode {
		return unicode
	}
	return ascii
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.w, SanitizeFor(c.unicode, s))
}

// Banner prints the application banner with version info.
func (c *Console) Banner() {
	if c.silent {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if strings.TrimSpace(line) != "" {
			c.println(c.st.banner.Render(line))
		}
	}
	c.println("                security scanner benchmark " + c.st.version.Render("v"+defaults.Version))
	c.println("")
}

// Config prints settings as aligned key/value lines, in the given order.
// Empty values are skipped.
func (c *Console) Config(pairs ...[2]string) {
	if c.silent {
		return
	}
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		fmt.Fprintf(c.w, " :: %s : %s\n", c.st.label.Render(kv[0]), c.st.value.Render(kv[1]))
	}
	c.println(c.st.muted.Render(bannerSeparator))
	c.println("")
}

// Section prints a section header.
func (c *Console) Section(title string) {
	if c.silent {
		return
	}
	c.println(c.st.section.Render("> " + title))
	c.println(c.st.muted.Render(strings.Repeat("-", 75)))
}

// Success prints a success message.
func (c *Console) Success(msg string) {
	if c.silent {
		return
	}
	c.println(c.st.success.Render("  " + c.icon("✔", "[+]") + " " + msg))
}

// Warning prints a warning message.
func (c *Console) Warning(msg string) {
	if c.silent {
		return
	}
	c.println(c.st.warning.Render("  " + c.icon("⚠", "[!]") + " " + msg))
}

// Error prints an error message. Errors are printed even when silent.
func (c *Console) Error(msg string) {
	c.println(c.st.failure.Render("  " + c.icon("✘", "[X]") + " " + msg))
}

// Info prints an informational message.
func (c *Console) Info(msg string) {
	if c.silent {
		return
	}
	c.println("  " + c.st.info.Render("*") + " " + msg)
}
