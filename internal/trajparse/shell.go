package trajparse

import (
	"regexp"
	"strconv"
	"strings"
)

// View is one mined file-viewing operation. HasRange is false when the
// command exposes the whole file (cat, grep hits).
type View struct {
	File      string
	StartLine int
	EndLine   int
	HasRange  bool
}

var (
	bashBlockRe = regexp.MustCompile("(?s)```bash\\s*\n(.*?)\n```")

	sedRangeRe = regexp.MustCompile(`sed\s+-n\s+['"]?(\d+),(\d+)p['"]?\s+([^\s&|>;<]+)`)
	nlSedRe    = regexp.MustCompile(`nl\s+[^|]+\s+([^\s|]+)\s*\|\s*sed\s+-n\s+['"]?(\d+),(\d+)p`)
	catRe      = regexp.MustCompile(`\bcat\s+([^\s&|>]+)`)
	headRe     = regexp.MustCompile(`\bhead\s+-n\s+(\d+)\s+([^\s&|>]+)`)
	grepRe     = regexp.MustCompile(`\bgrep\s+.*?\s+([^\s&|>]+\.(?:py|js|java|go|rs|c|cpp|h|hpp|ts|tsx))\b`)

	editorViewRe = regexp.MustCompile(`str_replace_editor view\s+(\S+)(?:\s+--view_range\s+(\d+)\s+(\d+))?`)
)

// Commands that mutate the tree never count as views even when a file path
// appears in them.
var mutatingMarkers = []string{"sed -i", "echo ", "mkdir", "rm ", "git add", "git commit"}

var sourceExts = []string{
	".py", ".js", ".java", ".go", ".rs", ".c", ".cpp", ".h", ".hpp",
	".ts", ".tsx", ".jsx", ".rb", ".php", ".cs", ".kt", ".scala", ".swift",
}

// bashBlock returns the first fenced bash block in an assistant message.
func bashBlock(content string) (string, bool) {
	m := bashBlockRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// viewsFromCommand mines a shell command for file-viewing operations.
// Patterns are tried from most to least specific; the first hit wins.
func viewsFromCommand(cmd string) []View {
	for _, marker := range mutatingMarkers {
		if strings.Contains(cmd, marker) {
			return nil
		}
	}

	if m := sedRangeRe.FindStringSubmatch(cmd); m != nil {
		if f := normalizePath(strings.Trim(m[3], `'"`)); isSourceFile(f) {
			return []View{{File: f, StartLine: atoi(m[1]), EndLine: atoi(m[2]), HasRange: true}}
		}
	}
	if m := nlSedRe.FindStringSubmatch(cmd); m != nil {
		if f := normalizePath(strings.Trim(m[1], `'"`)); isSourceFile(f) {
			return []View{{File: f, StartLine: atoi(m[2]), EndLine: atoi(m[3]), HasRange: true}}
		}
	}
	if m := catRe.FindStringSubmatch(cmd); m != nil {
		if f := normalizePath(strings.Trim(m[1], `'"`)); isSourceFile(f) {
			return []View{{File: f}}
		}
	}
	if m := headRe.FindStringSubmatch(cmd); m != nil {
		if f := normalizePath(strings.Trim(m[2], `'"`)); isSourceFile(f) {
			return []View{{File: f, StartLine: 1, EndLine: atoi(m[1]), HasRange: true}}
		}
	}
	if m := grepRe.FindStringSubmatch(cmd); m != nil {
		return []View{{File: normalizePath(strings.Trim(m[1], `'"`))}}
	}
	return nil
}

// viewCommand parses a str_replace_editor view action. Without an explicit
// --view_range the range comes back as (1, -1).
func viewCommand(action string) (file string, start, end int, ok bool) {
	if !strings.Contains(action, "str_replace_editor view") {
		return "", 0, 0, false
	}
	m := editorViewRe.FindStringSubmatch(action)
	if m == nil {
		return "", 0, 0, false
	}
	if m[2] != "" && m[3] != "" {
		return m[1], atoi(m[2]), atoi(m[3]), true
	}
	return m[1], 1, -1, true
}

// normalizePath strips the sandbox prefix agents run under.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/testbed/") {
		return path[len("/testbed/"):]
	}
	return strings.TrimPrefix(path, "/")
}

func isSourceFile(path string) bool {
	for _, ext := range sourceExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return strings.Contains(path, "/")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
