package symbols

import (
	"context"
	"path/filepath"
	"sync"

	"crev/internal/fileio"
	"crev/internal/intervals"
	"crev/internal/location"
)

// Cache stores symbol tables keyed by (commit, file). Implementations are
// supplied by the caller, which controls their lifetime; there is no
// process-global cache.
type Cache interface {
	Get(commit, file string) (*Table, bool, error)
	Put(commit, file string, table *Table) error
}

// Provider serves symbol tables and file content for one checked-out
// repository at one commit. It implements the resolver and content-source
// capabilities the view deriver needs. Results are memoized per instance so
// repeated steps touching the same file parse it once.
type Provider struct {
	repoDir   string
	commit    string
	extractor *Extractor
	scip      *SCIPSource
	cache     Cache

	mu     sync.Mutex
	tables map[string]tableResult
	lines  map[string]lineResult
}

type tableResult struct {
	table *Table
	err   error
}

type lineResult struct {
	table *fileio.LineTable
	err   error
}

// NewProvider creates a provider for a repo checkout. Each provider owns its
// own Extractor: tree-sitter parsers are not safe for concurrent use, and
// providers are what instances evaluated in parallel hold. scip may be nil,
// in which case tree-sitter extraction is used; cache may be nil to disable
// cross-instance caching.
func NewProvider(repoDir, commit string, scip *SCIPSource, cache Cache) *Provider {
	return &Provider{
		repoDir:   repoDir,
		commit:    commit,
		extractor: NewExtractor(),
		scip:      scip,
		cache:     cache,
		tables:    make(map[string]tableResult),
		lines:     make(map[string]lineResult),
	}
}

// LineTable returns the memoized line-offset table for a repository file.
func (p *Provider) LineTable(file string) (*fileio.LineTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res, ok := p.lines[file]; ok {
		return res.table, res.err
	}
	table, err := fileio.ReadLineTable(filepath.Join(p.repoDir, file))
	p.lines[file] = lineResult{table: table, err: err}
	return table, err
}

// Table returns the symbol table for a repository file, consulting the
// external (commit, file) cache before extracting.
func (p *Provider) Table(file string) (*Table, error) {
	p.mu.Lock()
	if res, ok := p.tables[file]; ok {
		p.mu.Unlock()
		return res.table, res.err
	}
	p.mu.Unlock()

	table, err := p.load(file)

	p.mu.Lock()
	p.tables[file] = tableResult{table: table, err: err}
	p.mu.Unlock()
	return table, err
}

func (p *Provider) load(file string) (*Table, error) {
	if p.cache != nil {
		if cached, ok, err := p.cache.Get(p.commit, file); err == nil && ok {
			return cached, nil
		}
	}

	table, err := p.extract(file)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		// Cache write failures are not fatal; the table is already in hand.
		_ = p.cache.Put(p.commit, file, table)
	}
	return table, nil
}

func (p *Provider) extract(file string) (*Table, error) {
	if p.scip != nil {
		table, err := p.scip.Table(file)
		if err != nil {
			return nil, err
		}
		return p.fillBytes(file, table)
	}
	return p.extractor.ExtractFile(context.Background(), filepath.Join(p.repoDir, file), file)
}

// fillBytes converts line spans of SCIP-derived symbols into byte offsets so
// byte-unit resolution works. Files whose content cannot be read keep
// line-only spans.
func (p *Provider) fillBytes(file string, table *Table) (*Table, error) {
	lt, err := p.LineTable(file)
	if err != nil {
		return table, nil
	}
	for i := range table.Symbols {
		sym := &table.Symbols[i]
		if sym.StartByte >= 0 {
			continue
		}
		if br, ok := lt.ByteRange(sym.StartLine, sym.EndLine); ok {
			sym.StartByte = br.Start
			sym.EndByte = br.End
		}
	}
	return table, nil
}

// ResolveSpans implements location.SymbolResolver.
func (p *Provider) ResolveSpans(file string, spans intervals.Set, unit location.Unit) ([]location.SymbolID, error) {
	table, err := p.Table(file)
	if err != nil {
		return nil, err
	}
	return table.Resolve(spans, unit), nil
}

// ResolveNames implements location.SymbolResolver.
func (p *Provider) ResolveNames(file string, names []string) ([]location.SymbolID, error) {
	table, err := p.Table(file)
	if err != nil {
		return nil, err
	}
	return table.ResolveNames(names), nil
}
