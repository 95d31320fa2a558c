package trajparse

import (
	"regexp"
	"sort"
	"strings"

	"crev/internal/location"
)

var linesRangeRe = regexp.MustCompile(`^(\d+)-(\d+)`)

// finalFromPatchContext parses the model-filtered final context, a plain
// text listing of the form:
//
//	File: /testbed/src/core.py
//	Lines: 10-25
//	Lines: 40-60
//	File: src/util.py
//	Lines: 1-5
//
// Returns nil when nothing parseable is present.
func finalFromPatchContext(text string) *location.Step {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var spans []location.Span
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "File:"):
			current = normalizePath(strings.TrimSpace(strings.TrimPrefix(line, "File:")))
		case strings.HasPrefix(line, "Lines:") && current != "":
			m := linesRangeRe.FindStringSubmatch(strings.TrimSpace(strings.TrimPrefix(line, "Lines:")))
			if m != nil {
				spans = append(spans, location.Span{
					File: current, StartLine: atoi(m[1]), EndLine: atoi(m[2]),
				})
			}
		}
	}
	if len(spans) == 0 {
		return nil
	}

	fileSet := make(map[string]bool)
	for _, s := range spans {
		fileSet[s.File] = true
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)

	return &location.Step{Files: files, Spans: spans}
}
