// Package format provides shared text formatting utilities for terminal output.
package format

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripAnsi removes ANSI escape sequences from a string.
func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DisplayWidth returns the visible width of a string in terminal columns,
// accounting for wide characters (which take 2 columns) and stripping ANSI
// escape sequences.
func DisplayWidth(s string) int {
	plain := StripAnsi(s)
	width := 0
	for _, r := range plain {
		width += runewidth.RuneWidth(r)
	}
	return width
}

// TruncateToWidth truncates a string to fit within maxWidth display columns,
// appending "..." when truncation occurs. ANSI escape sequences are preserved
// in the output without counting toward the width, and a reset code is
// appended after the ellipsis in case truncation landed inside a color span.
func TruncateToWidth(s string, maxWidth int) string {
	if DisplayWidth(s) <= maxWidth {
		return s
	}

	targetWidth := maxWidth - 3
	if targetWidth < 0 {
		targetWidth = 0
	}

	matches := ansiRegex.FindAllStringIndex(s, -1)

	var result strings.Builder
	visibleWidth := 0
	pos := 0
	matchIdx := 0

	for pos < len(s) && visibleWidth < targetWidth {
		if matchIdx < len(matches) && pos == matches[matchIdx][0] {
			result.WriteString(s[matches[matchIdx][0]:matches[matchIdx][1]])
			pos = matches[matchIdx][1]
			matchIdx++
			continue
		}

		r, size := utf8.DecodeRuneInString(s[pos:])
		rw := runewidth.RuneWidth(r)
		if visibleWidth+rw > targetWidth {
			break
		}
		result.WriteString(s[pos : pos+size])
		visibleWidth += rw
		pos += size
	}

	result.WriteString("...\033[0m")
	return result.String()
}

// Alignment selects how PadVisible distributes padding.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// PadVisible pads s with spaces to the given visible width, treating ANSI
// escape sequences as zero-width. Strings already at or beyond the width are
// returned unchanged.
func PadVisible(s string, width int, align Alignment) string {
	visible := DisplayWidth(s)
	if visible >= width {
		return s
	}
	pad := width - visible
	switch align {
	case AlignCenter:
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	case AlignRight:
		return strings.Repeat(" ", pad) + s
	default:
		return s + strings.Repeat(" ", pad)
	}
}

// ShortenFilename truncates a filename that exceeds maxLen, keeping the
// extension and the head and tail of the base name around a "..." separator:
// "a-really-long-filename.pdf" becomes "a-re...name.pdf".
func ShortenFilename(filename string, maxLen int) string {
	if utf8.RuneCountInString(filename) <= maxLen {
		return filename
	}

	name := filename
	ext := ""
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		name = filename[:idx]
		ext = filename[idx+1:]
	}

	const sep = "..."
	keep := (maxLen - len(ext) - len(sep)) / 2
	if keep < 1 {
		keep = 1
	}
	runes := []rune(name)
	if keep*2 >= len(runes) {
		return filename
	}
	head := string(runes[:keep])
	tail := string(runes[len(runes)-keep:])
	if ext == "" {
		return head + sep + tail
	}
	return head + sep + tail + "." + ext
}
