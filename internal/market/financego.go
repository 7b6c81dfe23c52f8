package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/quote"
)

// FinanceGoProvider is the fallback quote source when the chart endpoint
// misbehaves. It reads the same regular-market fields from Yahoo's v7
// quote API through the finance-go client.
type FinanceGoProvider struct{}

func NewFinanceGoProvider() *FinanceGoProvider {
	return &FinanceGoProvider{}
}

func (p *FinanceGoProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("symbols is empty")
	}
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		q, err := p.getOne(sym)
		if err != nil {
			return nil, "", err
		}
		out = append(out, q)
	}
	return out, "finance-go", nil
}

func (p *FinanceGoProvider) getOne(symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("empty symbol")
	}
	fq, err := quote.Get(symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("finance-go quote %s: %w", symbol, err)
	}
	if fq == nil || fq.RegularMarketPrice <= 0 {
		return Quote{}, fmt.Errorf("no data for symbol: %s", symbol)
	}

	mkt, currency := MarketForSymbol(symbol)
	if fq.CurrencyID != "" {
		currency = fq.CurrencyID
	}
	name := fq.ShortName
	if name == "" {
		name = symbol
	}
	exchange := fq.ExchangeID
	if exchange == "" {
		exchange = mkt
	}
	ts := int64(fq.RegularMarketTime)
	if ts == 0 {
		ts = time.Now().Unix()
	}

	return Quote{
		Symbol:        symbol,
		Name:          name,
		Market:        mkt,
		Currency:      currency,
		Price:         fq.RegularMarketPrice,
		Change:        round2(fq.RegularMarketChange),
		ChangePercent: round2(fq.RegularMarketChangePercent),
		DayHigh:       fq.RegularMarketDayHigh,
		DayLow:        fq.RegularMarketDayLow,
		Volume:        int64(fq.RegularMarketVolume),
		MarketState:   string(fq.MarketState),
		Exchange:      exchange,
		Timestamp:     ts,
	}, nil
}
