// Package search ranks catalog stocks against free-text queries. It backs
// the /api/search endpoint and the search_stocks tool; symbol resolution
// for quotes goes through the resolver instead.
package search

import (
	"fmt"
	"sort"
	"strings"

	"stock-assistant/internal/catalog"
)

type Engine interface {
	Search(query string, limit int) []Result
	GetBySymbol(symbol string) *catalog.Stock
	Close() error
}

type Result struct {
	catalog.Stock
	Score float64 `json:"score"`
}

// NewEngine builds the engine named in config: "memory" scans the catalog
// slice, "bleve" maintains a full-text index.
func NewEngine(kind, indexPath string, stocks []catalog.Stock) (Engine, error) {
	switch kind {
	case "", "memory":
		return NewMemoryEngine(stocks), nil
	case "bleve":
		return NewBleveEngine(indexPath, stocks)
	default:
		return nil, fmt.Errorf("unknown search engine: %s", kind)
	}
}

type MemoryEngine struct {
	stocks []catalog.Stock
}

func NewMemoryEngine(stocks []catalog.Stock) *MemoryEngine {
	return &MemoryEngine{stocks: stocks}
}

func (e *MemoryEngine) Search(query string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	limit = clampLimit(limit)

	var out []Result
	for _, st := range e.stocks {
		score := matchScore(st, q)
		if score <= 0 {
			continue
		}
		// Text relevance is primary, popularity breaks near-ties.
		out = append(out, Result{Stock: st, Score: score + st.Popularity*0.3})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *MemoryEngine) GetBySymbol(symbol string) *catalog.Stock {
	for _, st := range e.stocks {
		if strings.EqualFold(st.Symbol, symbol) {
			found := st
			return &found
		}
	}
	return nil
}

func (e *MemoryEngine) Close() error {
	return nil
}

// matchScore mirrors the boost ladder of the bleve engine: exact symbol or
// alias, symbol prefix, name or alias prefix, then substring matches.
func matchScore(st catalog.Stock, q string) float64 {
	symbol := strings.ToLower(st.Symbol)
	name := strings.ToLower(st.Name)

	if symbol == q || hasAlias(st.Aliases, q) {
		return 10
	}
	if strings.HasPrefix(symbol, q) {
		return 5
	}
	if strings.HasPrefix(name, q) || hasAliasPrefix(st.Aliases, q) {
		return 3
	}
	if strings.Contains(symbol, q) {
		return 2
	}
	if strings.Contains(name, q) {
		return 1.5
	}
	if hasAliasSubstring(st.Aliases, q) {
		return 1
	}
	return 0
}

func hasAlias(aliases []string, q string) bool {
	for _, a := range aliases {
		if strings.ToLower(a) == q {
			return true
		}
	}
	return false
}

func hasAliasPrefix(aliases []string, q string) bool {
	for _, a := range aliases {
		if strings.HasPrefix(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

func hasAliasSubstring(aliases []string, q string) bool {
	for _, a := range aliases {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}
