// Package diffparse extracts edit locations from unified diffs. Hunks are
// reduced to the changed-line ranges per file in new-file coordinates;
// context lines are excluded.
package diffparse

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"crev/internal/location"
)

// ChangedLines parses a unified diff and returns one span per contiguous
// run of added/removed lines. A pure deletion is pinned to the line where
// the removed content used to sit, clamped to a single line.
func ChangedLines(diffText string) ([]location.Span, error) {
	if strings.TrimSpace(diffText) == "" {
		return nil, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, fmt.Errorf("parsing unified diff: %w", err)
	}

	var spans []location.Span
	for _, fd := range fileDiffs {
		path := cleanPath(fd.NewName)
		if path == "" {
			// Deleted file: nothing exists at the new commit to locate
			// edits in.
			continue
		}
		for _, hunk := range fd.Hunks {
			spans = append(spans, hunkSpans(path, hunk)...)
		}
	}
	return spans, nil
}

// hunkSpans walks one hunk body and emits a span per run of changed lines.
func hunkSpans(path string, hunk *godiff.Hunk) []location.Span {
	var spans []location.Span
	newLine := int(hunk.NewStartLine)
	runStart := -1

	flush := func() {
		if runStart < 0 {
			return
		}
		end := newLine - 1
		if end < runStart {
			end = runStart // pure deletion collapses to one line
		}
		spans = append(spans, location.Span{File: path, StartLine: runStart, EndLine: end})
		runStart = -1
	}

	for _, line := range strings.Split(string(hunk.Body), "\n") {
		if line == "" {
			// Trailing blank from the final newline split; treat as context.
			flush()
			newLine++
			continue
		}
		switch line[0] {
		case '+':
			if runStart < 0 {
				runStart = newLine
			}
			newLine++
		case '-':
			if runStart < 0 {
				runStart = newLine
			}
		default:
			flush()
			newLine++
		}
	}
	flush()
	return spans
}

// cleanPath strips the a/ or b/ prefix git puts on diff paths and maps
// /dev/null to empty.
func cleanPath(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
