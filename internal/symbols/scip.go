package symbols

import (
	"fmt"
	"os"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"crev/internal/errors"
)

// SCIPSource serves symbol tables out of a prebuilt SCIP index instead of
// parsing source text. Useful for repos whose languages have no tree-sitter
// grammar wired in, at the cost of requiring an index built at the right
// commit.
type SCIPSource struct {
	docs map[string]*scippb.Document
	info map[string]*scippb.SymbolInformation
}

// LoadSCIPIndex loads and decodes a SCIP index from disk.
func LoadSCIPIndex(path string) (*SCIPSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.IndexMissing,
				fmt.Sprintf("SCIP index not found at %s", path), err)
		}
		return nil, errors.Wrap(errors.InternalError,
			fmt.Sprintf("reading SCIP index %s", path), err)
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(errors.InternalError,
			fmt.Sprintf("decoding SCIP index %s", path), err)
	}

	src := &SCIPSource{
		docs: make(map[string]*scippb.Document, len(index.Documents)),
		info: make(map[string]*scippb.SymbolInformation),
	}
	for _, doc := range index.Documents {
		src.docs[doc.RelativePath] = doc
		for _, sym := range doc.Symbols {
			src.info[sym.Symbol] = sym
		}
	}
	return src, nil
}

// Table converts a document's definition occurrences into a symbol table.
// Spans are in lines; byte offsets are filled in by the provider when byte
// comparison is configured.
func (s *SCIPSource) Table(relPath string) (*Table, error) {
	doc, ok := s.docs[relPath]
	if !ok {
		return nil, errors.New(errors.FileUnparseable,
			fmt.Sprintf("file not in SCIP index: %s", relPath))
	}

	var syms []Symbol
	for _, occ := range doc.Occurrences {
		if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
			continue
		}
		if strings.HasPrefix(occ.Symbol, "local ") {
			continue
		}

		// Prefer the enclosing range (whole definition body) over the name
		// occurrence itself.
		startLine, endLine, ok := occRange(occ.EnclosingRange)
		if !ok {
			startLine, endLine, ok = occRange(occ.Range)
		}
		if !ok {
			continue
		}

		name, kind := s.describe(occ.Symbol)
		if name == "" {
			continue
		}
		syms = append(syms, Symbol{
			File:      relPath,
			Name:      name,
			Kind:      kind,
			StartLine: startLine,
			EndLine:   endLine,
			StartByte: -1,
			EndByte:   -1,
		})
	}
	return NewTable(relPath, syms), nil
}

// occRange decodes a SCIP range ([startLine, startChar, endChar] or
// [startLine, startChar, endLine, endChar], 0-indexed) into 1-indexed
// inclusive lines.
func occRange(r []int32) (startLine, endLine int, ok bool) {
	switch len(r) {
	case 3:
		return int(r[0]) + 1, int(r[0]) + 1, true
	case 4:
		return int(r[0]) + 1, int(r[2]) + 1, true
	default:
		return 0, 0, false
	}
}

func (s *SCIPSource) describe(symbol string) (name, kind string) {
	info := s.info[symbol]
	if info != nil && info.DisplayName != "" {
		name = info.DisplayName
	} else {
		name = nameFromDescriptor(symbol)
	}

	kind = "function"
	if info != nil {
		switch info.Kind {
		case scippb.SymbolInformation_Method, scippb.SymbolInformation_Constructor:
			kind = "method"
		case scippb.SymbolInformation_Class, scippb.SymbolInformation_Struct,
			scippb.SymbolInformation_Enum:
			kind = "class"
		case scippb.SymbolInformation_Interface, scippb.SymbolInformation_Trait:
			kind = "interface"
		case scippb.SymbolInformation_Type, scippb.SymbolInformation_TypeAlias:
			kind = "type"
		}
	}
	return name, kind
}

// nameFromDescriptor pulls a readable name from a SCIP symbol string, whose
// descriptor suffix looks like `Class#method().`.
func nameFromDescriptor(symbol string) string {
	idx := strings.LastIndex(symbol, "/")
	if idx < 0 || idx+1 >= len(symbol) {
		return ""
	}
	desc := symbol[idx+1:]
	desc = strings.TrimRight(desc, "().#")
	desc = strings.ReplaceAll(desc, "#", ".")
	desc = strings.ReplaceAll(desc, "().", ".")
	if desc == "" {
		return ""
	}
	return desc
}
