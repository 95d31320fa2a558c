// Package location defines the units of comparison for context-retrieval
// evaluation: spans, location sets, trajectory steps, and the three
// granularity views (file, symbol, span) derived from them.
package location

import (
	"fmt"
	"sort"

	"crev/internal/intervals"
)

// Unit is the coordinate system spans are compared in.
type Unit string

const (
	// UnitLine compares spans as 1-indexed inclusive line ranges.
	UnitLine Unit = "line"
	// UnitByte compares spans as inclusive byte offsets.
	UnitByte Unit = "byte"
)

// Span is one contiguous region of one file, as supplied by upstream
// parsers. Coordinates are 1-indexed inclusive lines; conversion to bytes
// happens during view derivation when the byte unit is configured.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Valid reports whether the span is well-formed.
func (s Span) Valid() bool {
	return s.File != "" && s.StartLine >= 1 && s.StartLine <= s.EndLine
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d-%d", s.File, s.StartLine, s.EndLine)
}

// LocationSet is a snapshot of locations: a set of files plus per-file
// normalized interval sets. Gold annotations, per-step predictions, and
// cumulative predictions all use this one shape.
type LocationSet struct {
	Files map[string]bool
	Spans map[string]intervals.Set
}

// NewLocationSet returns an empty location set.
func NewLocationSet() *LocationSet {
	return &LocationSet{
		Files: make(map[string]bool),
		Spans: make(map[string]intervals.Set),
	}
}

// AddFile records a file-level view without span information.
func (l *LocationSet) AddFile(file string) {
	if file != "" {
		l.Files[file] = true
	}
}

// AddRange records an interval for a file and keeps the per-file set
// normalized.
func (l *LocationSet) AddRange(file string, r intervals.Range) {
	if file == "" || !r.Valid() {
		return
	}
	l.Files[file] = true
	l.Spans[file] = intervals.Union(l.Spans[file], intervals.New(r))
}

// Union folds another location set into this one.
func (l *LocationSet) Union(other *LocationSet) {
	if other == nil {
		return
	}
	for f := range other.Files {
		l.Files[f] = true
	}
	for f, set := range other.Spans {
		l.Spans[f] = intervals.Union(l.Spans[f], set)
	}
}

// Clone returns an independent deep copy.
func (l *LocationSet) Clone() *LocationSet {
	out := NewLocationSet()
	out.Union(l)
	return out
}

// Empty reports whether the set carries no signal at all.
func (l *LocationSet) Empty() bool {
	return len(l.Files) == 0 && len(l.Spans) == 0
}

// FileList returns the files in sorted order, including files that only
// appear through spans.
func (l *LocationSet) FileList() []string {
	seen := make(map[string]bool, len(l.Files))
	for f := range l.Files {
		seen[f] = true
	}
	for f := range l.Spans {
		seen[f] = true
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Step is one agent action: the files and spans it viewed, plus optional
// symbol names when the agent log reports them directly.
type Step struct {
	Index   int
	Files   []string
	Spans   []Span
	Symbols map[string][]string // file -> symbol names, optional
}

// Empty reports whether the step carries no signal. Empty steps are
// discarded before aggregation.
func (s Step) Empty() bool {
	return len(s.Files) == 0 && len(s.Spans) == 0 && len(s.Symbols) == 0
}

// Locations converts the step into a LocationSet of line intervals. Files
// viewed without line information contribute at file granularity only.
func (s Step) Locations() *LocationSet {
	loc := NewLocationSet()
	for _, f := range s.Files {
		loc.AddFile(f)
	}
	for _, sp := range s.Spans {
		if sp.Valid() {
			loc.AddRange(sp.File, intervals.Range{Start: sp.StartLine, End: sp.EndLine})
		}
	}
	for f := range s.Symbols {
		loc.AddFile(f)
	}
	return loc
}

// Trajectory is the unified step sequence produced by an agent-format
// extractor, with the optional explicit final context and final patch text.
type Trajectory struct {
	Steps []Step
	// Final is the agent-reported final context, when the log format carries
	// one distinct from the view history. Nil means the accumulated view
	// union stands in as the final context.
	Final *Step
	// Patch is the final unified diff submitted by the agent, if any.
	Patch string
}

// Retained returns the steps that carry signal, re-indexed from 1.
func (t Trajectory) Retained() []Step {
	out := make([]Step, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.Empty() {
			continue
		}
		s.Index = len(out) + 1
		out = append(out, s)
	}
	return out
}
