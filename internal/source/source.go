// Package source provides the immutable text buffer and line index that every
// later compiler stage points into: the lexer emits Tokens whose SourceLocations
// reference a ModuleSource, and every diagnostic carries one of those locations
// back out to the host.
package source

import (
	"strings"
)

// ModuleSource owns the text of one compiled module and a line index that New
// computes once, up front. It never mutates after construction.
type ModuleSource struct {
	path  string
	text  string
	lines []int // byte offset of the first rune on each line, 0-indexed internally
}

// New builds a ModuleSource from UTF-8 text, accepting LF, CR, or CRLF line
// endings. path is an opaque identifier used only for diagnostics.
func New(path, text string) *ModuleSource {
	m := &ModuleSource{path: path, text: text}
	m.indexLines()
	return m
}

func (m *ModuleSource) indexLines() {
	m.lines = append(m.lines, 0)
	for i := 0; i < len(m.text); i++ {
		switch m.text[i] {
		case '\n':
			m.lines = append(m.lines, i+1)
		case '\r':
			if i+1 < len(m.text) && m.text[i+1] == '\n' {
				continue
			}
			m.lines = append(m.lines, i+1)
		}
	}
}

// Path returns the opaque path/name this source was constructed with.
func (m *ModuleSource) Path() string { return m.path }

// Text returns the full source text.
func (m *ModuleSource) Text() string { return m.text }

// Len returns the number of bytes in the source text.
func (m *ModuleSource) Len() int { return len(m.text) }

// LineCount returns the number of lines in the source.
func (m *ModuleSource) LineCount() int { return len(m.lines) }

// Line returns the text of the given 1-indexed line, without its terminator.
func (m *ModuleSource) Line(line int) string {
	if line < 1 || line > len(m.lines) {
		return ""
	}
	start := m.lines[line-1]
	var end int
	if line == len(m.lines) {
		end = len(m.text)
	} else {
		end = m.lines[line]
	}
	s := m.text[start:end]
	return strings.TrimRight(s, "\r\n")
}

// LineCol converts a byte offset into a 1-indexed (line, column) pair. column
// is a 1-indexed byte count from the start of the line.
func (m *ModuleSource) LineCol(offset int) (line, col int) {
	// binary search for the last line start <= offset
	lo, hi := 0, len(m.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - m.lines[lo] + 1
}

// Slice returns the text in the byte range [start, end).
func (m *ModuleSource) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(m.text) {
		end = len(m.text)
	}
	if start >= end {
		return ""
	}
	return m.text[start:end]
}

// Location is a span of text within a ModuleSource; NewLocation fills in its
// line/column positions from a byte offset pair.
type Location struct {
	Src              *ModuleSource
	Offset, EndOffset int
	Line, Column      int
	EndLine, EndColumn int
}

// NewLocation builds a Location spanning [startOffset, endOffset) within src.
func NewLocation(src *ModuleSource, startOffset, endOffset int) Location {
	l := Location{Src: src, Offset: startOffset, EndOffset: endOffset}
	if src != nil {
		l.Line, l.Column = src.LineCol(startOffset)
		l.EndLine, l.EndColumn = src.LineCol(endOffset)
	}
	return l
}

// GetOffset returns the starting byte offset of the location.
func (l Location) GetOffset() int { return l.Offset }

// GetEndLocation returns a Location describing just the end point.
func (l Location) GetEndLocation() Location {
	return Location{Src: l.Src, Offset: l.EndOffset, EndOffset: l.EndOffset, Line: l.EndLine, Column: l.EndColumn}
}

// Length returns the length, in bytes, of the location's span.
func (l Location) Length() int { return l.EndOffset - l.Offset }

// String renders "path:line:col" for diagnostics.
func (l Location) String() string {
	path := "<unknown>"
	if l.Src != nil {
		path = l.Src.Path()
	}
	return path + ":" + itoa(l.Line) + ":" + itoa(l.Column)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
