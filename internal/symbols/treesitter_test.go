//go:build cgo

package symbols

import (
	"context"
	"testing"
)

const pySource = `class Greeter:
    def __init__(self, name):
        self.name = name

    def greet(self):
        return "hi " + self.name

def main():
    print(Greeter("x").greet())
`

func TestExtractSource_Python(t *testing.T) {
	e := NewExtractor()
	table, err := e.ExtractSource(context.Background(), "greeter.py", []byte(pySource), LangPython)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byName := make(map[string]Symbol)
	for _, s := range table.Symbols {
		byName[s.Name] = s
	}

	cls, ok := byName["Greeter"]
	if !ok {
		t.Fatalf("class Greeter not extracted; got %v", table.Symbols)
	}
	if cls.Kind != "class" {
		t.Errorf("Greeter kind = %s, want class", cls.Kind)
	}

	init, ok := byName["Greeter.__init__"]
	if !ok {
		t.Fatalf("Greeter.__init__ not extracted; got %v", table.Symbols)
	}
	if init.Kind != "method" {
		t.Errorf("__init__ kind = %s, want method", init.Kind)
	}
	if init.StartLine != 2 {
		t.Errorf("__init__ start line = %d, want 2", init.StartLine)
	}

	if _, ok := byName["Greeter.greet"]; !ok {
		t.Errorf("Greeter.greet not extracted")
	}
	fn, ok := byName["main"]
	if !ok {
		t.Fatalf("main not extracted")
	}
	if fn.Kind != "function" {
		t.Errorf("main kind = %s, want function", fn.Kind)
	}
	if fn.StartByte <= 0 || fn.EndByte < fn.StartByte {
		t.Errorf("main byte span invalid: [%d,%d]", fn.StartByte, fn.EndByte)
	}
}

const goSource = `package web

type Server struct{ addr string }

func (s *Server) ListenAndServe() error { return nil }

func New(addr string) *Server { return &Server{addr: addr} }
`

func TestExtractSource_Go(t *testing.T) {
	e := NewExtractor()
	table, err := e.ExtractSource(context.Background(), "web/server.go", []byte(goSource), LangGo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byName := make(map[string]Symbol)
	for _, s := range table.Symbols {
		byName[s.Name] = s
	}

	if sym, ok := byName["Server"]; !ok || sym.Kind != "type" {
		t.Errorf("type Server not extracted correctly: %+v (ok=%v)", sym, ok)
	}
	if sym, ok := byName["Server.ListenAndServe"]; !ok || sym.Kind != "method" {
		t.Errorf("method Server.ListenAndServe not extracted correctly: %+v (ok=%v)", sym, ok)
	}
	if sym, ok := byName["New"]; !ok || sym.Kind != "function" {
		t.Errorf("func New not extracted correctly: %+v (ok=%v)", sym, ok)
	}
}

func TestExtractFile_UnsupportedExtension(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractFile(context.Background(), "/tmp/nonexistent.xyz", "nonexistent.xyz")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
