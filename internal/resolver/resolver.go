// Package resolver turns free-text stock queries ("TCS stock price",
// "Apple share") into exchange ticker symbols ("TCS.NS", "AAPL") by
// normalizing the query and matching it against an ordered alias table.
package resolver

import (
	"regexp"
	"strings"
)

var stopWords = makeStopWords(
	"stock", "share", "price", "of", "the", "what", "is", "whats", "show",
	"me", "get", "find", "check", "tell", "give", "current", "today", "now",
	"latest", "live", "real", "time", "realtime", "value", "rate", "cost",
	"worth", "trading", "at", "for", "please", "stocks", "shares", "prices",
)

func makeStopWords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var punctReplacer = strings.NewReplacer(
	"?", " ", "!", " ", ".", " ", ",", " ", "'", " ", `"`, " ",
)

var symbolShape = regexp.MustCompile(`^[A-Z0-9-]+$`)

type Resolver struct {
	table *Table
}

func New(table *Table) *Resolver {
	if table == nil {
		table = &Table{
			index:   make(map[string]string),
			symbols: make(map[string]struct{}),
		}
	}
	return &Resolver{table: table}
}

// Resolve maps a raw query to a ticker symbol. It never fails: every input
// produces a best-effort symbol string. Matching tiers, first hit wins:
// already-qualified .NS/.BO input, exact alias, alias substring containment
// in table order, per-token alias, symbol-shape heuristic, echo of the
// first cleaned token. An input that normalizes to nothing resolves to "".
func (r *Resolver) Resolve(query string) string {
	upper := strings.ToUpper(strings.TrimSpace(query))
	if strings.HasSuffix(upper, ".NS") || strings.HasSuffix(upper, ".BO") {
		return upper
	}

	cleaned := normalize(query)
	if cleaned == "" {
		return ""
	}

	if sym, ok := r.table.lookup(cleaned); ok {
		return sym
	}

	// Table order is the tie-break: "tata" matches the first tata entry.
	for _, e := range r.table.entries {
		if cleaned == e.Alias || strings.Contains(cleaned, e.Alias) || strings.Contains(e.Alias, cleaned) {
			return e.Symbol
		}
	}

	for _, tok := range strings.Split(cleaned, " ") {
		if sym, ok := r.table.lookup(tok); ok {
			return sym
		}
	}

	shaped := strings.ToUpper(strings.ReplaceAll(cleaned, " ", ""))
	if symbolShape.MatchString(shaped) {
		return shaped
	}

	first, _, _ := strings.Cut(cleaned, " ")
	return strings.ToUpper(first)
}

// Known reports whether symbol is one of the table's curated symbols, as
// opposed to a guess produced by the shape or echo fallbacks.
func (r *Resolver) Known(symbol string) bool {
	return r.table.HasSymbol(symbol)
}

// normalize lower-cases the query, maps ? ! . , ' " to spaces, drops stop
// words as whole tokens (so "at" never corrupts "tata"), and collapses the
// remaining tokens to single-space separation.
func normalize(query string) string {
	s := punctReplacer.Replace(strings.ToLower(strings.TrimSpace(query)))
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
