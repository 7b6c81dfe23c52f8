package resolver

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]Entry{
		{Alias: "reliance", Symbol: "RELIANCE.NS"},
		{Alias: "reliance industries", Symbol: "RELIANCE.NS"},
		{Alias: "tcs", Symbol: "TCS.NS"},
		{Alias: "tata motors", Symbol: "TATAMOTORS.NS"},
		{Alias: "tata steel", Symbol: "TATASTEEL.NS"},
		{Alias: "infosys", Symbol: "INFY.NS"},
		{Alias: "infy", Symbol: "INFY.NS"},
		{Alias: "hdfc bank", Symbol: "HDFCBANK.NS"},
		{Alias: "apple", Symbol: "AAPL"},
		{Alias: "aapl", Symbol: "AAPL"},
		{Alias: "tesla", Symbol: "TSLA"},
	})
	require.NoError(t, err)
	return tbl
}

func TestResolveSuffixShortCircuit(t *testing.T) {
	r := New(testTable(t))
	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"upper ns", "TCS.NS", "TCS.NS"},
		{"lower ns", "tcs.ns", "TCS.NS"},
		{"mixed bo", "Reliance.bo", "RELIANCE.BO"},
		{"padded", "  infy.ns  ", "INFY.NS"},
		{"unknown symbol still passes", "xyz.bo", "XYZ.BO"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Resolve(tc.query))
			// Bypasses every heuristic: output is just the upper-cased trim.
			assert.Equal(t, strings.ToUpper(strings.TrimSpace(tc.query)), r.Resolve(tc.query))
		})
	}
}

func TestResolveExactAlias(t *testing.T) {
	r := New(testTable(t))
	assert.Equal(t, "TCS.NS", r.Resolve("tcs"))
	assert.Equal(t, "RELIANCE.NS", r.Resolve("reliance industries"))
	assert.Equal(t, "HDFCBANK.NS", r.Resolve("HDFC Bank"))
	assert.Equal(t, "AAPL", r.Resolve("Apple"))
	assert.Equal(t, "AAPL", r.Resolve("aapl"))
	assert.Equal(t, "AAPL", r.Resolve("AAPL"))
}

func TestResolveStopWordInsensitivity(t *testing.T) {
	r := New(testTable(t))
	cases := []struct {
		query string
		want  string
	}{
		{"tcs stock price", "TCS.NS"},
		{"what is the price of tcs", "TCS.NS"},
		{"show me reliance share price", "RELIANCE.NS"},
		{"apple stock price today", "AAPL"},
		{"whats the latest tesla value", "TSLA"},
		{"check infosys now please", "INFY.NS"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Resolve(tc.query))
		})
	}
	assert.Equal(t, r.Resolve("tcs"), r.Resolve("tcs stock price"))
}

func TestResolveWordBoundaries(t *testing.T) {
	r := New(testTable(t))
	// "at" is a stop word but must not be stripped out of "tata".
	assert.Equal(t, "TATAMOTORS.NS", r.Resolve("tata motors"))
	assert.Equal(t, "TATAMOTORS.NS", r.Resolve("tata motors share price today"))
	assert.Equal(t, "TATASTEEL.NS", r.Resolve("tata steel stock"))
}

func TestResolveSubstringTableOrder(t *testing.T) {
	r := New(testTable(t))
	// "tata" is contained in both tata aliases; the first-defined one wins.
	assert.Equal(t, "TATAMOTORS.NS", r.Resolve("tata"))
	// Query containing an alias resolves through the same scan.
	assert.Equal(t, "TATASTEEL.NS", r.Resolve("steel"))
	assert.Equal(t, "TCS.NS", r.Resolve("buy some tcs shares now"))
}

func TestResolveShapeFallback(t *testing.T) {
	r := New(testTable(t))
	assert.Equal(t, "XYZ123", r.Resolve("XYZ123"))
	assert.Equal(t, "ZOMATO", r.Resolve("zomato"))
	assert.Equal(t, "BRK-B", r.Resolve("brk-b"))
	// Spaces are removed before the shape check, so unknown multi-word
	// input concatenates rather than truncating to the first token.
	assert.Equal(t, "ACMEWIDGETS", r.Resolve("acme widgets"))
}

func TestResolveEmptyAndStopWordOnly(t *testing.T) {
	r := New(testTable(t))
	assert.Equal(t, "", r.Resolve(""))
	assert.Equal(t, "", r.Resolve("   "))
	assert.Equal(t, "", r.Resolve("what is the price"))
	assert.Equal(t, "", r.Resolve("?!,"))
	assert.Equal(t, "", r.Resolve("show me the latest"))
}

func TestResolveEchoFallback(t *testing.T) {
	r := New(testTable(t))
	// "&" survives normalization, fails the shape check, and the first
	// cleaned token is echoed upper-cased.
	assert.Equal(t, "M&M", r.Resolve("m&m motors"))
}

func TestResolveDeterminism(t *testing.T) {
	r := New(testTable(t))
	queries := []string{
		"tcs stock price", "tata", "", "XYZ123", "what is the price",
		"Apple", "reliance.BO", "m&m motors", "buy some tcs shares now",
	}
	for _, q := range queries {
		assert.Equal(t, r.Resolve(q), r.Resolve(q), "query %q", q)
	}
}

func TestResolveAliasCoverage(t *testing.T) {
	tbl := testTable(t)
	r := New(tbl)
	for _, e := range tbl.Entries() {
		assert.Equal(t, e.Symbol, r.Resolve(e.Alias), "alias %q", e.Alias)
	}
}

func TestResolveConcurrent(t *testing.T) {
	r := New(testTable(t))
	queries := []string{"tcs", "tata", "apple stock price", "XYZ123", ""}
	want := make([]string, len(queries))
	for i, q := range queries {
		want[i] = r.Resolve(q)
	}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				if got := r.Resolve(q); got != want[i] {
					t.Errorf("concurrent Resolve(%q) = %q, want %q", q, got, want[i])
				}
			}
		}()
	}
	wg.Wait()
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"lower and trim", "  TCS  ", "tcs"},
		{"punctuation to space", "tcs, price? now!", "tcs"},
		{"stop words dropped", "what is the price of tcs", "tcs"},
		{"boundary keeps tata", "tata motors at the latest rate", "tata motors"},
		{"collapse whitespace", "hdfc   bank    stock", "hdfc bank"},
		{"quotes and apostrophes", `"apple's" price`, "apple s"},
		{"only stop words", "show me the current value", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalize(tc.input))
		})
	}
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable([]Entry{{Alias: "tcs", Symbol: "TCS.NS"}, {Alias: "tcs", Symbol: "TCS.BO"}})
	assert.Error(t, err, "duplicate alias")

	_, err = NewTable([]Entry{{Alias: "TCS", Symbol: "TCS.NS"}})
	assert.Error(t, err, "upper-case alias")

	_, err = NewTable([]Entry{{Alias: "tcs", Symbol: "tcs.ns"}})
	assert.Error(t, err, "lower-case symbol")

	_, err = NewTable([]Entry{{Alias: "tcs", Symbol: "TCS.XX"}})
	assert.Error(t, err, "unknown exchange suffix")

	_, err = NewTable([]Entry{{Alias: "", Symbol: "TCS.NS"}})
	assert.Error(t, err, "empty alias")

	tbl, err := NewTable([]Entry{
		{Alias: "tcs", Symbol: "TCS.NS"},
		{Alias: "sensex", Symbol: "SENSEX.BO"},
		{Alias: "berkshire", Symbol: "BRK-B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.HasSymbol("TCS.NS"))
	assert.True(t, tbl.HasSymbol("BRK-B"))
	assert.False(t, tbl.HasSymbol("AAPL"))
}
