//go:build cgo

package symbols

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"crev/internal/errors"
)

// Extractor parses source files with tree-sitter and extracts definition
// symbols with qualified names. The underlying parser holds single-threaded
// C state, so an Extractor must stay confined to one goroutine; callers that
// parse in parallel create one Extractor each.
type Extractor struct {
	parser *sitter.Parser
}

// NewExtractor creates a new tree-sitter backed extractor.
func NewExtractor() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// Available reports whether tree-sitter extraction is compiled in.
func Available() bool {
	return true
}

// ExtractFile parses a file on disk and returns its symbol table keyed by
// the repository-relative path.
func (e *Extractor) ExtractFile(ctx context.Context, absPath, relPath string) (*Table, error) {
	lang, ok := LanguageForPath(absPath)
	if !ok {
		return nil, errors.New(errors.FileUnparseable,
			fmt.Sprintf("no grammar for %s", relPath))
	}
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.Wrap(errors.FileUnparseable,
			fmt.Sprintf("reading %s", relPath), err)
	}
	return e.ExtractSource(ctx, relPath, source, lang)
}

// ExtractSource extracts symbols from source bytes.
func (e *Extractor) ExtractSource(ctx context.Context, relPath string, source []byte, lang Language) (*Table, error) {
	tsLang, err := grammar(lang)
	if err != nil {
		return nil, errors.Wrap(errors.FileUnparseable, relPath, err)
	}

	e.parser.SetLanguage(tsLang)
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.Wrap(errors.FileUnparseable,
			fmt.Sprintf("parsing %s", relPath), err)
	}
	defer tree.Close()

	var syms []Symbol
	walk(tree.RootNode(), source, lang, relPath, "", &syms)
	return NewTable(relPath, syms), nil
}

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangRust:
		return rust.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangKotlin:
		return kotlin.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// defKind maps definition node types to symbol kinds, per language.
func defKind(lang Language, nodeType string) (string, bool) {
	switch lang {
	case LangGo:
		switch nodeType {
		case "function_declaration":
			return "function", true
		case "method_declaration":
			return "method", true
		case "type_spec":
			return "type", true
		}
	case LangPython:
		switch nodeType {
		case "function_definition":
			return "function", true
		case "class_definition":
			return "class", true
		}
	case LangJavaScript, LangTypeScript, LangTSX:
		switch nodeType {
		case "function_declaration", "generator_function_declaration":
			return "function", true
		case "method_definition":
			return "method", true
		case "class_declaration":
			return "class", true
		case "interface_declaration":
			return "interface", true
		}
	case LangJava:
		switch nodeType {
		case "method_declaration", "constructor_declaration":
			return "method", true
		case "class_declaration":
			return "class", true
		case "interface_declaration":
			return "interface", true
		}
	case LangRust:
		switch nodeType {
		case "function_item":
			return "function", true
		case "struct_item", "enum_item":
			return "type", true
		case "trait_item":
			return "interface", true
		}
	case LangKotlin:
		switch nodeType {
		case "function_declaration":
			return "function", true
		case "class_declaration":
			return "class", true
		case "object_declaration":
			return "class", true
		}
	}
	return "", false
}

// container node types open a new qualification scope for their members.
func isContainer(kind string) bool {
	return kind == "class" || kind == "type" || kind == "interface"
}

// walk traverses the AST depth-first, collecting definitions. Nested
// definitions keep their enclosing definition's name as a prefix, so a
// method inside a class resolves as Class.method.
func walk(node *sitter.Node, source []byte, lang Language, path, container string, out *[]Symbol) {
	childContainer := container

	nodeType := node.Type()
	if kind, ok := defKind(lang, nodeType); ok {
		name := defName(node, source, lang)
		if name != "" {
			qualified := name
			if container != "" {
				qualified = container + "." + name
			}
			if kind == "function" && container != "" {
				kind = "method"
			}
			*out = append(*out, Symbol{
				File:      path,
				Name:      qualified,
				Kind:      kind,
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
				StartByte: int(node.StartByte()),
				EndByte:   int(node.EndByte()) - 1,
			})
			if isContainer(kind) {
				childContainer = qualified
			}
		}
	}

	// Rust impl blocks qualify their functions without being symbols
	// themselves.
	if lang == LangRust && nodeType == "impl_item" {
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			childContainer = typeNode.Content(source)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), source, lang, path, childContainer, out)
	}
}

// defName extracts the declared name of a definition node.
func defName(node *sitter.Node, source []byte, lang Language) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name := nameNode.Content(source)
		if lang == LangGo && node.Type() == "method_declaration" {
			if recv := receiverType(node, source); recv != "" {
				return recv + "." + name
			}
		}
		return name
	}
	return ""
}

// receiverType pulls the receiver's base type name from a Go method
// declaration.
func receiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var found string
	var scan func(n *sitter.Node)
	scan = func(n *sitter.Node) {
		if found != "" {
			return
		}
		if n.Type() == "type_identifier" {
			found = n.Content(source)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			scan(n.NamedChild(i))
		}
	}
	scan(recv)
	return found
}
