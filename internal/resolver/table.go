package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry is one alias table row: a lower-case human-friendly name mapped to
// an exchange-qualified ticker. Entry order is significant: it is the
// tie-break when several aliases are substring-compatible with a query.
type Entry struct {
	Alias  string
	Symbol string
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9-]+(\.NS|\.BO)?$`)

// Table is an ordered, immutable alias table. It is built once and is safe
// for concurrent lookups without locking.
type Table struct {
	entries []Entry
	index   map[string]string
	symbols map[string]struct{}
}

func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]string, len(entries)),
		symbols: make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		if e.Alias == "" {
			return nil, fmt.Errorf("empty alias for symbol %q", e.Symbol)
		}
		if e.Alias != strings.ToLower(e.Alias) {
			return nil, fmt.Errorf("alias not lower-case: %q", e.Alias)
		}
		if !symbolPattern.MatchString(e.Symbol) {
			return nil, fmt.Errorf("invalid symbol %q for alias %q", e.Symbol, e.Alias)
		}
		if _, dup := t.index[e.Alias]; dup {
			return nil, fmt.Errorf("duplicate alias %q", e.Alias)
		}
		t.entries = append(t.entries, e)
		t.index[e.Alias] = e.Symbol
		t.symbols[e.Symbol] = struct{}{}
	}
	return t, nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// HasSymbol reports whether symbol is a value in the table. Callers use it
// to tell a table hit apart from a heuristic guess, since Resolve itself
// never fails.
func (t *Table) HasSymbol(symbol string) bool {
	_, ok := t.symbols[symbol]
	return ok
}

func (t *Table) lookup(alias string) (string, bool) {
	sym, ok := t.index[alias]
	return sym, ok
}
