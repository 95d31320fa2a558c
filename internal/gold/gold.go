// Package gold loads human-annotated gold contexts: the locations a correct
// fix must have viewed or touched, fixed per instance for the lifetime of an
// evaluation run. Annotations come as a single JSON/JSONL/YAML file or as a
// directory tree of per-instance annot.json files.
package gold

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"crev/internal/errors"
	"crev/internal/intervals"
	"crev/internal/location"
)

// ContextItem is one annotated region. A zero start/end line marks a
// file-level annotation with no span information.
type ContextItem struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
}

// Annotation is the gold context of one instance. InitCtx holds the regions
// the fix itself touches (also the EditLoc gold); AddCtx holds additional
// context a solver needs to understand the fix.
type Annotation struct {
	InstID         string        `json:"inst_id" yaml:"inst_id"`
	OriginalInstID string        `json:"original_inst_id" yaml:"original_inst_id"`
	RepoURL        string        `json:"repo_url" yaml:"repo_url"`
	Commit         string        `json:"commit" yaml:"commit"`
	InitCtx        []ContextItem `json:"init_ctx" yaml:"init_ctx"`
	AddCtx         []ContextItem `json:"add_ctx" yaml:"add_ctx"`
}

// ID returns the canonical instance id.
func (a *Annotation) ID() string {
	if a.OriginalInstID != "" {
		return a.OriginalInstID
	}
	return a.InstID
}

// Locations converts the merged init+add context into a location set of
// line intervals. Malformed items are returned separately so the caller can
// null the affected granularities with a note instead of failing silently.
func (a *Annotation) Locations() (*location.LocationSet, []ContextItem) {
	return itemsToLocations(append(append([]ContextItem{}, a.InitCtx...), a.AddCtx...))
}

// InitLocations converts only the init context, which serves as the EditLoc
// gold.
func (a *Annotation) InitLocations() (*location.LocationSet, []ContextItem) {
	return itemsToLocations(a.InitCtx)
}

func itemsToLocations(items []ContextItem) (*location.LocationSet, []ContextItem) {
	loc := location.NewLocationSet()
	var invalid []ContextItem
	for _, item := range items {
		switch {
		case item.File == "":
			invalid = append(invalid, item)
		case item.StartLine == 0 && item.EndLine == 0:
			loc.AddFile(item.File)
		case item.StartLine < 1 || item.EndLine < item.StartLine:
			invalid = append(invalid, item)
		default:
			loc.AddRange(item.File, intervals.Range{Start: item.StartLine, End: item.EndLine})
		}
	}
	return loc, invalid
}

// Loader resolves instance ids to annotations. Directory inputs are indexed
// lazily: the id map is built up front, annotation bodies load on demand.
type Loader struct {
	byID  map[string]*Annotation
	index map[string]string // instance id -> annot.json path
}

// NewLoader builds a loader from an annotation file or directory.
func NewLoader(path string) (*Loader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("gold path %s", path), err)
	}
	if info.IsDir() {
		return newDirLoader(path)
	}
	return newFileLoader(path)
}

func newDirLoader(root string) (*Loader, error) {
	l := &Loader{byID: make(map[string]*Annotation), index: make(map[string]string)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "annot.json" {
			return nil
		}
		annot, loadErr := readAnnotation(path)
		if loadErr != nil {
			// A single broken annotation must not sink the whole index.
			return nil
		}
		for _, key := range []string{annot.InstID, annot.OriginalInstID} {
			if key != "" {
				l.index[key] = path
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("indexing %s", root), err)
	}
	return l, nil
}

func newFileLoader(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("reading %s", path), err)
	}

	var list []*Annotation
	switch {
	case strings.HasSuffix(path, ".jsonl"):
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var a Annotation
			if err := json.Unmarshal([]byte(line), &a); err != nil {
				return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("parsing %s", path), err)
			}
			list = append(list, &a)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, &list); err != nil {
			var single Annotation
			if err2 := yaml.Unmarshal(data, &single); err2 != nil {
				return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("parsing %s", path), err)
			}
			list = []*Annotation{&single}
		}
	default:
		if err := json.Unmarshal(data, &list); err != nil {
			var single Annotation
			if err2 := json.Unmarshal(data, &single); err2 != nil {
				return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("parsing %s", path), err)
			}
			list = []*Annotation{&single}
		}
	}

	l := &Loader{byID: make(map[string]*Annotation, len(list)), index: make(map[string]string)}
	for _, a := range list {
		for _, key := range []string{a.InstID, a.OriginalInstID} {
			if key != "" {
				l.byID[key] = a
			}
		}
	}
	return l, nil
}

func readAnnotation(path string) (*Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Annotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Get returns the annotation for an instance id.
func (l *Loader) Get(id string) (*Annotation, error) {
	if a, ok := l.byID[id]; ok {
		return a, nil
	}
	if path, ok := l.index[id]; ok {
		a, err := readAnnotation(path)
		if err != nil {
			return nil, errors.Wrap(errors.GoldInvalid, fmt.Sprintf("loading %s", path), err)
		}
		l.byID[id] = a
		return a, nil
	}
	return nil, errors.New(errors.GoldMissing, fmt.Sprintf("no gold context for %s", id))
}

// Size returns the number of distinct indexed ids.
func (l *Loader) Size() int {
	if len(l.index) > 0 {
		return len(l.index)
	}
	return len(l.byID)
}
