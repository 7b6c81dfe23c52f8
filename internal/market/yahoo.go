package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type YahooProvider struct {
	baseURL string
	client  *http.Client
	limiter *TokenBucket
}

func NewYahooProvider(timeout time.Duration, limiter *TokenBucket) *YahooProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooProvider{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart/",
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

func (p *YahooProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("symbols is empty")
	}
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := p.getOne(ctx, sym)
		if err != nil {
			return nil, "", err
		}
		out = append(out, q)
	}
	return out, "yahoo", nil
}

func (p *YahooProvider) getOne(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("empty symbol")
	}
	if !p.limiter.WaitForToken(2 * time.Second) {
		return Quote{}, fmt.Errorf("quote rate limit exceeded for %s", symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+url.PathEscape(symbol), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)

	var body []byte
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := p.client.Do(req)
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return Quote{}, fmt.Errorf("request yahoo: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if shouldRetry(err) && attempt < 2 {
				lastErr = err
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return Quote{}, fmt.Errorf("read yahoo response: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return Quote{}, fmt.Errorf("symbol not found: %s (Indian listings need a .NS or .BO suffix)", symbol)
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("yahoo status %d for %s", resp.StatusCode, symbol)
			if attempt < 2 && resp.StatusCode >= 500 {
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return Quote{}, lastErr
		}
		body = data
		lastErr = nil
		break
	}
	if lastErr != nil {
		return Quote{}, fmt.Errorf("request yahoo: %w", lastErr)
	}

	return parseYahooChart(symbol, body)
}

func parseYahooChart(symbol string, body []byte) (Quote, error) {
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
			return Quote{}, fmt.Errorf("yahoo: %s", desc.String())
		}
		return Quote{}, fmt.Errorf("no data for symbol: %s", symbol)
	}

	meta := result.Get("meta")
	price := meta.Get("regularMarketPrice").Float()
	if price <= 0 {
		return Quote{}, fmt.Errorf("invalid price for %s", symbol)
	}
	prevClose := meta.Get("previousClose").Float()
	if prevClose == 0 {
		prevClose = meta.Get("chartPreviousClose").Float()
	}
	var change, changePct float64
	if prevClose != 0 {
		change = round2(price - prevClose)
		changePct = round2(change / prevClose * 100)
	}

	mkt, currency := MarketForSymbol(symbol)
	if c := meta.Get("currency").String(); c != "" {
		currency = c
	}
	name := meta.Get("shortName").String()
	if name == "" {
		name = meta.Get("symbol").String()
	}
	if name == "" {
		name = symbol
	}
	exchange := meta.Get("exchangeName").String()
	if exchange == "" {
		exchange = mkt
	}
	ts := meta.Get("regularMarketTime").Int()
	if ts == 0 {
		ts = time.Now().Unix()
	}

	return Quote{
		Symbol:        symbol,
		Name:          name,
		Market:        mkt,
		Currency:      currency,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		DayHigh:       meta.Get("regularMarketDayHigh").Float(),
		DayLow:        meta.Get("regularMarketDayLow").Float(),
		Volume:        meta.Get("regularMarketVolume").Int(),
		MarketState:   meta.Get("marketState").String(),
		Exchange:      exchange,
		Timestamp:     ts,
	}, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "reset by peer") {
		return true
	}
	return false
}
