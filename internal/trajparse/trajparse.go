// Package trajparse loads agent prediction files and reconstructs retrieval
// trajectories from them. Three input shapes are recognized per record:
//
//   - message logs: assistant messages carrying ```bash``` blocks that are
//     mined for file-viewing commands
//   - editor checkpoints: structured action/observation pairs using
//     str_replace_editor view
//   - pre-extracted contexts: records that already carry pred_files,
//     pred_symbols and pred_spans
//
// All shapes reduce to a location.Trajectory plus instance metadata.
package trajparse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"crev/internal/errors"
	"crev/internal/location"
)

// Prediction is one agent run: the reconstructed trajectory, the model patch
// and enough metadata to locate the repository snapshot it ran against.
type Prediction struct {
	InstanceID string
	RepoURL    string
	Commit     string
	Trajectory location.Trajectory
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type patchContextData struct {
	PatchContext string `json:"patch_context"`
}

type trajInfo struct {
	Submission       string           `json:"submission"`
	PatchContextData patchContextData `json:"patch_context_data"`
}

type predSpan struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// record is the superset of all per-instance shapes we accept.
type record struct {
	InstanceID     string `json:"instance_id"`
	InstID         string `json:"inst_id"`
	OriginalInstID string `json:"original_inst_id"`
	RepoURL        string `json:"repo_url"`
	Commit         string `json:"commit"`
	ModelPatch     string `json:"model_patch"`

	Messages         []message        `json:"messages"`
	PatchContextData patchContextData `json:"patch_context_data"`

	PredFiles   []string            `json:"pred_files"`
	PredSymbols map[string][]string `json:"pred_symbols"`
	PredSpans   []predSpan          `json:"pred_spans"`
}

// checkpoint is one line of an editor checkpoint stream.
type checkpoint struct {
	Type         string `json:"type"`
	Action       string `json:"action"`
	Observation  string `json:"observation"`
	PatchContext string `json:"patch_context"`

	InstanceID string `json:"instance_id"`
	RepoURL    string `json:"repo_url"`
	Commit     string `json:"commit"`
	ModelPatch string `json:"model_patch"`
}

func (r *record) id() string {
	for _, id := range []string{r.InstanceID, r.OriginalInstID, r.InstID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// Load reads a prediction file and returns one Prediction per instance.
// JSONL files hold one record per line, except *.checkpoints.jsonl which is
// a single-instance checkpoint stream. JSON files hold a list, a single
// record, or a raw agent log ({"info": ..., "messages": ...}); for the
// latter the instance id comes from the file name.
func Load(path string) ([]*Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.FormatUnknown, fmt.Sprintf("reading %s", path), err)
	}

	if strings.HasSuffix(path, ".checkpoints.jsonl") {
		pred, err := parseCheckpoints(data, trimTrajExt(filepath.Base(path)))
		if err != nil {
			return nil, err
		}
		return []*Prediction{pred}, nil
	}

	var records []*record
	if strings.HasSuffix(path, ".jsonl") {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var r record
			if err := json.Unmarshal([]byte(line), &r); err != nil {
				return nil, errors.Wrap(errors.FormatUnknown, fmt.Sprintf("parsing %s", path), err)
			}
			records = append(records, &r)
		}
	} else {
		records, err = parseJSON(data, path)
		if err != nil {
			return nil, err
		}
	}

	preds := make([]*Prediction, 0, len(records))
	for _, r := range records {
		preds = append(preds, fromRecord(r))
	}
	return preds, nil
}

func parseJSON(data []byte, path string) ([]*record, error) {
	var list []*record
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	// Raw agent log: {"info": {...}, "messages": [...]}.
	var raw struct {
		Info     *trajInfo `json:"info"`
		Messages []message `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.FormatUnknown, fmt.Sprintf("parsing %s", path), err)
	}
	if raw.Info != nil && raw.Messages != nil {
		return []*record{{
			InstanceID:       trimTrajExt(filepath.Base(path)),
			Messages:         raw.Messages,
			ModelPatch:       raw.Info.Submission,
			PatchContextData: raw.Info.PatchContextData,
		}}, nil
	}

	var single record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, errors.Wrap(errors.FormatUnknown, fmt.Sprintf("parsing %s", path), err)
	}
	return []*record{&single}, nil
}

func trimTrajExt(name string) string {
	for _, ext := range []string{".traj.json", ".checkpoints.jsonl", ".json"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// fromRecord builds a Prediction from one record, picking the richest shape
// the record supports.
func fromRecord(r *record) *Prediction {
	pred := &Prediction{
		InstanceID: r.id(),
		RepoURL:    r.RepoURL,
		Commit:     r.Commit,
	}
	pred.Trajectory.Patch = r.ModelPatch

	switch {
	case len(r.Messages) > 0:
		pred.Trajectory.Steps = stepsFromMessages(r.Messages)
		pred.Trajectory.Final = finalFromPatchContext(r.PatchContextData.PatchContext)
	case len(r.PredFiles) > 0 || len(r.PredSpans) > 0 || len(r.PredSymbols) > 0:
		pred.Trajectory.Final = stepFromExtracted(r)
	default:
		pred.Trajectory.Final = finalFromPatchContext(r.PatchContextData.PatchContext)
	}

	// A final-only prediction still counts as a one-step trajectory.
	if len(pred.Trajectory.Steps) == 0 && pred.Trajectory.Final != nil {
		pred.Trajectory.Steps = []location.Step{*pred.Trajectory.Final}
	}
	return pred
}

func stepsFromMessages(msgs []message) []location.Step {
	var steps []location.Step
	for _, msg := range msgs {
		if msg.Role != "assistant" {
			continue
		}
		cmd, ok := bashBlock(msg.Content)
		if !ok || strings.Contains(cmd, "COMPLETE_TASK") {
			continue
		}
		views := viewsFromCommand(cmd)
		if len(views) == 0 {
			continue
		}
		var st location.Step
		for _, v := range views {
			st.Files = append(st.Files, v.File)
			if v.HasRange {
				st.Spans = append(st.Spans, location.Span{
					File: v.File, StartLine: v.StartLine, EndLine: v.EndLine,
				})
			}
		}
		steps = append(steps, st)
	}
	return steps
}

func stepFromExtracted(r *record) *location.Step {
	st := &location.Step{Files: append([]string{}, r.PredFiles...)}
	seen := make(map[string]bool, len(st.Files))
	for _, f := range st.Files {
		seen[f] = true
	}
	for _, s := range r.PredSpans {
		if s.File == "" || s.StartLine < 1 || s.EndLine < s.StartLine {
			continue
		}
		st.Spans = append(st.Spans, location.Span{
			File: s.File, StartLine: s.StartLine, EndLine: s.EndLine,
		})
		if !seen[s.File] {
			st.Files = append(st.Files, s.File)
			seen[s.File] = true
		}
	}
	if len(r.PredSymbols) > 0 {
		st.Symbols = make(map[string][]string, len(r.PredSymbols))
		for f, names := range r.PredSymbols {
			st.Symbols[f] = append([]string{}, names...)
			if !seen[f] {
				st.Files = append(st.Files, f)
				seen[f] = true
			}
		}
	}
	sort.Strings(st.Files)
	if st.Empty() {
		return nil
	}
	return st
}

// parseCheckpoints reconstructs a trajectory from an editor checkpoint
// stream. Only view actions with an explicit line range become steps; a
// patch_context checkpoint provides the explicit final context.
func parseCheckpoints(data []byte, fallbackID string) (*Prediction, error) {
	pred := &Prediction{InstanceID: fallbackID}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var cp checkpoint
		if err := json.Unmarshal([]byte(line), &cp); err != nil {
			return nil, errors.Wrap(errors.FormatUnknown, "parsing checkpoint line", err)
		}
		if cp.InstanceID != "" {
			pred.InstanceID = cp.InstanceID
		}
		if cp.RepoURL != "" {
			pred.RepoURL = cp.RepoURL
		}
		if cp.Commit != "" {
			pred.Commit = cp.Commit
		}
		if cp.ModelPatch != "" {
			pred.Trajectory.Patch = cp.ModelPatch
		}

		if cp.Type == "patch_context" {
			if final := finalFromPatchContext(cp.PatchContext); final != nil {
				pred.Trajectory.Final = final
			}
			continue
		}

		file, start, end, ok := viewCommand(cp.Action)
		if !ok || start < 1 || end < start {
			continue
		}
		file = normalizePath(file)
		pred.Trajectory.Steps = append(pred.Trajectory.Steps, location.Step{
			Files: []string{file},
			Spans: []location.Span{{File: file, StartLine: start, EndLine: end}},
		})
	}
	if len(pred.Trajectory.Steps) == 0 && pred.Trajectory.Final != nil {
		pred.Trajectory.Steps = []location.Step{*pred.Trajectory.Final}
	}
	return pred, nil
}
