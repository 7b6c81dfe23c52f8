// Package catalog holds the curated stock universe: NSE majors and US
// large caps with their spoken-name aliases and a popularity weight. The
// catalog feeds both the alias table used for symbol resolution and the
// search index.
package catalog

import (
	"strings"

	"stock-assistant/internal/resolver"
)

type Stock struct {
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Exchange   string   `json:"exchange"`
	Aliases    []string `json:"aliases,omitempty"`
	Popularity float64  `json:"popularity,omitempty"`
}

// Default returns the built-in catalog. Order matters: when a query is
// substring-compatible with several aliases the earliest entry wins, so
// TATAMOTORS is listed before TATASTEEL to keep bare "tata" on the more
// traded symbol.
func Default() []Stock {
	return []Stock{
		{Symbol: "RELIANCE.NS", Name: "Reliance Industries", Exchange: "NSE", Aliases: []string{"reliance", "ril", "reliance industries"}, Popularity: 1.0},
		{Symbol: "TCS.NS", Name: "Tata Consultancy Services", Exchange: "NSE", Aliases: []string{"tcs"}, Popularity: 0.98},
		{Symbol: "HDFCBANK.NS", Name: "HDFC Bank", Exchange: "NSE", Aliases: []string{"hdfc bank", "hdfc"}, Popularity: 0.96},
		{Symbol: "INFY.NS", Name: "Infosys", Exchange: "NSE", Aliases: []string{"infosys", "infy"}, Popularity: 0.95},
		{Symbol: "ICICIBANK.NS", Name: "ICICI Bank", Exchange: "NSE", Aliases: []string{"icici bank", "icici"}, Popularity: 0.93},
		{Symbol: "SBIN.NS", Name: "State Bank of India", Exchange: "NSE", Aliases: []string{"sbi", "state bank"}, Popularity: 0.92},
		{Symbol: "ITC.NS", Name: "ITC", Exchange: "NSE", Aliases: []string{"itc"}, Popularity: 0.91},
		{Symbol: "HINDUNILVR.NS", Name: "Hindustan Unilever", Exchange: "NSE", Aliases: []string{"hindustan unilever", "hul"}, Popularity: 0.90},
		{Symbol: "BHARTIARTL.NS", Name: "Bharti Airtel", Exchange: "NSE", Aliases: []string{"airtel", "bharti airtel"}, Popularity: 0.89},
		{Symbol: "BAJFINANCE.NS", Name: "Bajaj Finance", Exchange: "NSE", Aliases: []string{"bajaj finance"}, Popularity: 0.88},
		{Symbol: "KOTAKBANK.NS", Name: "Kotak Mahindra Bank", Exchange: "NSE", Aliases: []string{"kotak", "kotak bank"}, Popularity: 0.87},
		{Symbol: "LT.NS", Name: "Larsen & Toubro", Exchange: "NSE", Aliases: []string{"larsen", "l&t"}, Popularity: 0.86},
		{Symbol: "AXISBANK.NS", Name: "Axis Bank", Exchange: "NSE", Aliases: []string{"axis bank", "axis"}, Popularity: 0.85},
		{Symbol: "MARUTI.NS", Name: "Maruti Suzuki", Exchange: "NSE", Aliases: []string{"maruti", "maruti suzuki"}, Popularity: 0.84},
		{Symbol: "ADANIENT.NS", Name: "Adani Enterprises", Exchange: "NSE", Aliases: []string{"adani", "adani enterprises"}, Popularity: 0.82},
		{Symbol: "ZOMATO.NS", Name: "Zomato", Exchange: "NSE", Aliases: []string{"zomato"}, Popularity: 0.81},
		{Symbol: "WIPRO.NS", Name: "Wipro", Exchange: "NSE", Aliases: []string{"wipro"}, Popularity: 0.80},
		{Symbol: "HCLTECH.NS", Name: "HCL Technologies", Exchange: "NSE", Aliases: []string{"hcl", "hcl tech"}, Popularity: 0.79},
		{Symbol: "ASIANPAINT.NS", Name: "Asian Paints", Exchange: "NSE", Aliases: []string{"asian paints"}, Popularity: 0.78},
		{Symbol: "TITAN.NS", Name: "Titan Company", Exchange: "NSE", Aliases: []string{"titan"}, Popularity: 0.77},
		{Symbol: "IRCTC.NS", Name: "IRCTC", Exchange: "NSE", Aliases: []string{"irctc"}, Popularity: 0.76},
		{Symbol: "TATAMOTORS.NS", Name: "Tata Motors", Exchange: "NSE", Aliases: []string{"tata motors"}, Popularity: 0.75},
		{Symbol: "PAYTM.NS", Name: "One97 Communications", Exchange: "NSE", Aliases: []string{"paytm"}, Popularity: 0.74},
		{Symbol: "TATASTEEL.NS", Name: "Tata Steel", Exchange: "NSE", Aliases: []string{"tata steel"}, Popularity: 0.73},
		{Symbol: "SUNPHARMA.NS", Name: "Sun Pharmaceutical", Exchange: "NSE", Aliases: []string{"sun pharma"}, Popularity: 0.72},
		{Symbol: "ULTRACEMCO.NS", Name: "UltraTech Cement", Exchange: "NSE", Aliases: []string{"ultratech", "ultratech cement"}, Popularity: 0.71},
		{Symbol: "NTPC.NS", Name: "NTPC", Exchange: "NSE", Aliases: []string{"ntpc"}, Popularity: 0.70},
		{Symbol: "ONGC.NS", Name: "Oil and Natural Gas Corporation", Exchange: "NSE", Aliases: []string{"ongc"}, Popularity: 0.69},

		{Symbol: "AAPL", Name: "Apple", Exchange: "NASDAQ", Aliases: []string{"apple", "aapl"}, Popularity: 1.0},
		{Symbol: "MSFT", Name: "Microsoft", Exchange: "NASDAQ", Aliases: []string{"microsoft", "msft"}, Popularity: 0.99},
		{Symbol: "NVDA", Name: "NVIDIA", Exchange: "NASDAQ", Aliases: []string{"nvidia", "nvda"}, Popularity: 0.99},
		{Symbol: "TSLA", Name: "Tesla", Exchange: "NASDAQ", Aliases: []string{"tesla", "tsla"}, Popularity: 0.98},
		{Symbol: "GOOGL", Name: "Alphabet", Exchange: "NASDAQ", Aliases: []string{"google", "alphabet", "googl"}, Popularity: 0.97},
		{Symbol: "AMZN", Name: "Amazon", Exchange: "NASDAQ", Aliases: []string{"amazon", "amzn"}, Popularity: 0.96},
		{Symbol: "META", Name: "Meta Platforms", Exchange: "NASDAQ", Aliases: []string{"meta", "facebook"}, Popularity: 0.94},
		{Symbol: "NFLX", Name: "Netflix", Exchange: "NASDAQ", Aliases: []string{"netflix"}, Popularity: 0.90},
		{Symbol: "AMD", Name: "Advanced Micro Devices", Exchange: "NASDAQ", Aliases: []string{"amd"}, Popularity: 0.88},
		{Symbol: "INTC", Name: "Intel", Exchange: "NASDAQ", Aliases: []string{"intel", "intc"}, Popularity: 0.85},
	}
}

// AliasEntries flattens stocks into ordered alias table entries. Explicit
// aliases come first per stock, then the bare lower-cased symbol (suffix
// stripped) when it is at least four characters, so "tatamotors" works
// without being listed by hand. The first definition of an alias wins.
func AliasEntries(stocks []Stock) []resolver.Entry {
	seen := make(map[string]struct{})
	var entries []resolver.Entry
	add := func(alias, symbol string) {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			return
		}
		if _, dup := seen[alias]; dup {
			return
		}
		seen[alias] = struct{}{}
		entries = append(entries, resolver.Entry{Alias: alias, Symbol: symbol})
	}
	for _, s := range stocks {
		for _, a := range s.Aliases {
			add(a, s.Symbol)
		}
		bare := strings.ToLower(baseSymbol(s.Symbol))
		if len(bare) >= 4 {
			add(bare, s.Symbol)
		}
	}
	return entries
}

func baseSymbol(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		return symbol[:i]
	}
	return symbol
}
