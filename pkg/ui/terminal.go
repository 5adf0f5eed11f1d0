package ui

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
)

var unicodeTerminal = sync.OnceValue(func() bool {
	return detectUnicode(os.Getenv, term.IsTerminal(int(os.Stderr.Fd())), runtime.GOOS)
})

// UnicodeTerminal reports whether stderr can render glyphs such as
// check marks and rounded table borders.
func UnicodeTerminal() bool {
	return unicodeTerminal()
}

// detectUnicode decides glyph support from the environment. Piped
// output and TERM=dumb never get Unicode. On Windows only Windows
// Terminal (WT_SESSION) has fonts for it; conhost does not, even with
// the UTF-8 code page.
func detectUnicode(getenv func(string) string, tty bool, goos string) bool {
	switch {
	case !tty, getenv("TERM") == "dumb":
		return false
	case goos == "windows":
		return getenv("WT_SESSION") != ""
	default:
		return true
	}
}

// unicodeWriter reports whether w is stdout or stderr on a terminal that
// can render Unicode. Buffers and files get plain text.
func unicodeWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || (f != os.Stderr && f != os.Stdout) {
		return false
	}
	return UnicodeTerminal()
}

// Icon returns unicode when stderr can render it, ascii otherwise.
func Icon(unicode, ascii string) string {
	if UnicodeTerminal() {
		return unicode
	}
	return ascii
}

// SanitizeString drops glyphs stderr cannot render.
func SanitizeString(s string) string {
	return SanitizeFor(UnicodeTerminal(), s)
}

// SanitizeFor returns s unchanged when unicodeOK, otherwise s with
// emoji, symbols and box drawing removed. Latin text survives.
func SanitizeFor(unicodeOK bool, s string) string {
	if unicodeOK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if renderable(r) {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}

// renderable reports whether a legacy console font has r: ASCII,
// Latin-1 and the other Latin blocks.
func renderable(r rune) bool {
	return r <= 0xFF || unicode.Is(unicode.Latin, r)
}
