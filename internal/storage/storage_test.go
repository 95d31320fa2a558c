package storage

import (
	"io"
	"testing"

	"crev/internal/logging"
	"crev/internal/symbols"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
	db, err := Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	table := symbols.NewTable("src/core.py", []symbols.Symbol{
		{File: "src/core.py", Name: "Service", Kind: "class", StartLine: 1, EndLine: 30, StartByte: 0, EndByte: 899},
		{File: "src/core.py", Name: "Service.run", Kind: "method", StartLine: 5, EndLine: 12, StartByte: 120, EndByte: 400},
	})

	if err := db.Put("abc123", "src/core.py", table); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := db.Get("abc123", "src/core.py")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.Symbols) != 2 {
		t.Fatalf("got %d symbols, want 2", len(got.Symbols))
	}
	if got.Symbols[1].Name != "Service.run" || got.Symbols[1].EndByte != 400 {
		t.Errorf("unexpected symbol: %+v", got.Symbols[1])
	}

	n, err := db.Stats()
	if err != nil || n != 1 {
		t.Errorf("Stats = %d, %v; want 1", n, err)
	}
}

func TestGetMissAndCommitIsolation(t *testing.T) {
	db := openTestDB(t)

	table := symbols.NewTable("a.py", []symbols.Symbol{
		{File: "a.py", Name: "f", Kind: "function", StartLine: 1, EndLine: 2},
	})
	if err := db.Put("commit1", "a.py", table); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok, err := db.Get("commit2", "a.py"); err != nil || ok {
		t.Errorf("different commit must miss: ok=%v err=%v", ok, err)
	}
	if _, ok, err := db.Get("commit1", "b.py"); err != nil || ok {
		t.Errorf("different file must miss: ok=%v err=%v", ok, err)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	db := openTestDB(t)

	old := symbols.NewTable("a.py", []symbols.Symbol{
		{File: "a.py", Name: "old", Kind: "function"},
	})
	updated := symbols.NewTable("a.py", []symbols.Symbol{
		{File: "a.py", Name: "new_one", Kind: "function"},
		{File: "a.py", Name: "new_two", Kind: "function"},
	})

	if err := db.Put("c", "a.py", old); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("c", "a.py", updated); err != nil {
		t.Fatal(err)
	}

	got, ok, _ := db.Get("c", "a.py")
	if !ok || len(got.Symbols) != 2 {
		t.Fatalf("expected replacement with 2 symbols, got ok=%v %+v", ok, got)
	}
}
