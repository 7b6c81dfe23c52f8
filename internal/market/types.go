package market

import (
	"context"
	"math"
	"strings"
)

type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Market        string  `json:"market"`
	Currency      string  `json:"currency"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	DayHigh       float64 `json:"day_high,omitempty"`
	DayLow        float64 `json:"day_low,omitempty"`
	Volume        int64   `json:"volume,omitempty"`
	MarketState   string  `json:"market_state,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

type Provider interface {
	GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error)
}

// MarketForSymbol maps a ticker's exchange suffix to market and trading
// currency: .NS is NSE, .BO is BSE, everything else is treated as US.
func MarketForSymbol(symbol string) (string, string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".NS"):
		return "NSE", "INR"
	case strings.HasSuffix(s, ".BO"):
		return "BSE", "INR"
	default:
		return "US", "USD"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
