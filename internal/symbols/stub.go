//go:build !cgo

package symbols

import (
	"context"
	"fmt"

	"crev/internal/errors"
)

// Extractor is a stub used when CGO is not available. Every extraction
// fails with FileUnparseable, so files fall out of symbol-granularity
// metrics the same way an unparseable file would.
type Extractor struct{}

// NewExtractor creates a stub extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Available reports whether tree-sitter extraction is compiled in.
func Available() bool {
	return false
}

// ExtractFile always fails in the stub build.
func (e *Extractor) ExtractFile(ctx context.Context, absPath, relPath string) (*Table, error) {
	return nil, errors.New(errors.FileUnparseable,
		fmt.Sprintf("tree-sitter unavailable without cgo: %s", relPath))
}

// ExtractSource always fails in the stub build.
func (e *Extractor) ExtractSource(ctx context.Context, relPath string, source []byte, lang Language) (*Table, error) {
	return nil, errors.New(errors.FileUnparseable,
		fmt.Sprintf("tree-sitter unavailable without cgo: %s", relPath))
}
