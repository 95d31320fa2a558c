// Package fileio translates 1-indexed inclusive line ranges into inclusive
// byte offsets for a file's content. The evaluation engine compares spans in
// bytes by default, while gold annotations and trajectory logs speak in
// lines; this package is the bridge.
package fileio

import (
	"os"

	"crev/internal/intervals"
)

// LineTable holds the byte offset of the start of every line of a file.
type LineTable struct {
	offsets []int // offsets[i] = byte offset where line i+1 starts
	size    int   // total content length in bytes
}

// NewLineTable builds a line table from raw file content.
func NewLineTable(content []byte) *LineTable {
	offsets := []int{0}
	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return &LineTable{offsets: offsets, size: len(content)}
}

// ReadLineTable reads a file and builds its line table.
func ReadLineTable(path string) (*LineTable, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewLineTable(content), nil
}

// Size returns the content length in bytes.
func (t *LineTable) Size() int {
	return t.size
}

// LineCount returns the number of lines in the file. A trailing newline does
// not start a new line for counting purposes.
func (t *LineTable) LineCount() int {
	n := len(t.offsets)
	if n > 1 && t.offsets[n-1] >= t.size {
		return n - 1
	}
	if t.size == 0 {
		return 0
	}
	return n
}

// ByteRange converts a 1-indexed inclusive line span into an inclusive byte
// range. Out-of-order inputs are clamped the permissive way the upstream
// annotation format requires: startLine below 1 becomes 1, endLine below
// startLine becomes startLine. Returns ok=false when startLine is past the
// end of the file.
func (t *LineTable) ByteRange(startLine, endLine int) (intervals.Range, bool) {
	if t.size == 0 {
		return intervals.Range{Start: 0, End: 0}, true
	}
	if startLine < 1 {
		startLine = 1
	}
	if endLine < startLine {
		endLine = startLine
	}

	startIdx := startLine - 1
	if startIdx >= len(t.offsets) {
		return intervals.Range{}, false
	}

	start := t.offsets[startIdx]
	var end int
	if endLine < len(t.offsets) {
		end = t.offsets[endLine] - 1
	} else {
		end = t.size - 1
	}
	if end < start {
		end = start
	}
	return intervals.Range{Start: start, End: end}, true
}

// LineRange converts an inclusive byte range back into a 1-indexed inclusive
// line span. Bytes past the end of file clamp to the last line.
func (t *LineTable) LineRange(r intervals.Range) (startLine, endLine int) {
	return t.lineAt(r.Start), t.lineAt(r.End)
}

func (t *LineTable) lineAt(offset int) int {
	if offset < 0 {
		return 1
	}
	// Binary search for the last line starting at or before offset.
	lo, hi := 0, len(t.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.offsets[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
