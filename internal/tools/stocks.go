package tools

import (
	"context"
	"log"
	"strings"

	"stock-assistant/internal/market"
	"stock-assistant/internal/resolver"
	"stock-assistant/internal/search"
	"stock-assistant/internal/store"
)

// StockTools answers price, resolution, and catalog search requests.
type StockTools struct {
	resolver *resolver.Resolver
	market   *market.Service
	engine   search.Engine
	store    *store.Store
}

func NewStockTools(res *resolver.Resolver, svc *market.Service, eng search.Engine, st *store.Store) *StockTools {
	return &StockTools{resolver: res, market: svc, engine: eng, store: st}
}

func (t *StockTools) Tools() []Tool {
	return []Tool{
		{
			Name:        "get_stock_price",
			Description: "Get live stock price for US (NYSE/NASDAQ) or Indian (NSE/BSE) markets. Use .NS suffix for NSE, .BO for BSE, no suffix for US stocks.",
			InputSchema: objectSchema([]string{"symbol"}, map[string]any{
				"symbol": prop("string", "Stock ticker symbol (e.g., 'AAPL' for Apple, 'RELIANCE.NS' for Reliance on NSE, 'TCS.BO' for TCS on BSE)"),
			}),
			Handler: t.getStockPrice,
		},
		{
			Name:        "resolve_symbol",
			Description: "Resolve a free-text stock query like 'tcs stock price' or 'apple share' to a ticker symbol. Returns whether the symbol is a known listing or a best-effort guess.",
			InputSchema: objectSchema([]string{"query"}, map[string]any{
				"query": prop("string", "Free-text stock query or company name"),
			}),
			Handler: t.resolveSymbol,
		},
		{
			Name:        "search_stocks",
			Description: "Search the stock catalog by symbol, company name, or alias.",
			InputSchema: objectSchema([]string{"query"}, map[string]any{
				"query": prop("string", "Search text"),
				"limit": prop("integer", "Maximum number of results (default: 10)"),
			}),
			Handler: t.searchStocks,
		},
	}
}

func (t *StockTools) getStockPrice(ctx context.Context, args map[string]any) (map[string]any, error) {
	symbol := argString(args, "symbol")
	if symbol == "" {
		return errResult("Missing 'symbol' parameter"), nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if t.market == nil {
		return errResult("Market data is not available"), nil
	}
	q, _, err := t.market.GetQuote(ctx, symbol)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return QuoteResult(q), nil
}

func (t *StockTools) resolveSymbol(_ context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query")
	if query == "" {
		return errResult("Missing 'query' parameter"), nil
	}
	symbol := t.resolver.Resolve(query)
	known := t.resolver.Known(symbol)
	if t.store != nil {
		if err := t.store.InsertResolution(store.ResolutionRecord{Query: query, Symbol: symbol, Known: known}); err != nil {
			log.Printf("record resolution error: %v", err)
		}
	}
	return map[string]any{"query": query, "symbol": symbol, "known": known}, nil
}

func (t *StockTools) searchStocks(_ context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query")
	if query == "" {
		return errResult("Missing 'query' parameter"), nil
	}
	limit := 10
	if v, ok := argInt(args, "limit"); ok && v > 0 {
		limit = v
	}
	results := []search.Result{}
	if t.engine != nil {
		if found := t.engine.Search(query, limit); found != nil {
			results = found
		}
	}
	return map[string]any{"query": query, "results": results, "count": len(results)}, nil
}

// QuoteResult flattens a quote into the wire shape shared by the price
// tool and the chat fallback.
func QuoteResult(q market.Quote) map[string]any {
	return map[string]any{
		"symbol":         q.Symbol,
		"name":           q.Name,
		"market":         q.Market,
		"currency":       q.Currency,
		"price":          q.Price,
		"change":         q.Change,
		"change_percent": q.ChangePercent,
		"day_high":       q.DayHigh,
		"day_low":        q.DayLow,
		"volume":         q.Volume,
		"market_state":   q.MarketState,
		"exchange":       q.Exchange,
		"timestamp":      q.Timestamp,
	}
}
