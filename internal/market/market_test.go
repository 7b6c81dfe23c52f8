package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	source string
	err    error
	calls  atomic.Int64
}

func (f *fakeProvider) GetQuotes(ctx context.Context, symbols []string) ([]Quote, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		mkt, currency := MarketForSymbol(sym)
		out = append(out, Quote{
			Symbol:    sym,
			Name:      sym,
			Market:    mkt,
			Currency:  currency,
			Price:     100,
			Timestamp: 1700000000,
		})
	}
	return out, f.source, nil
}

func TestMarketForSymbol(t *testing.T) {
	cases := []struct {
		symbol   string
		market   string
		currency string
	}{
		{"TCS.NS", "NSE", "INR"},
		{"tcs.ns", "NSE", "INR"},
		{"500325.BO", "BSE", "INR"},
		{"AAPL", "US", "USD"},
		{"", "US", "USD"},
	}
	for _, tc := range cases {
		mkt, currency := MarketForSymbol(tc.symbol)
		assert.Equal(t, tc.market, mkt, tc.symbol)
		assert.Equal(t, tc.currency, currency, tc.symbol)
	}
}

func TestParseYahooChart(t *testing.T) {
	body := []byte(`{"chart":{"result":[{"meta":{
		"currency":"INR","symbol":"TCS.NS","exchangeName":"NSI",
		"shortName":"Tata Consultancy Services Limited",
		"regularMarketPrice":3900.5,"previousClose":3850.0,
		"regularMarketDayHigh":3920.0,"regularMarketDayLow":3880.0,
		"regularMarketVolume":1250000,"regularMarketTime":1700000000,
		"marketState":"REGULAR"}}],"error":null}}`)

	q, err := parseYahooChart("TCS.NS", body)
	require.NoError(t, err)
	assert.Equal(t, "TCS.NS", q.Symbol)
	assert.Equal(t, "Tata Consultancy Services Limited", q.Name)
	assert.Equal(t, "NSE", q.Market)
	assert.Equal(t, "INR", q.Currency)
	assert.Equal(t, 3900.5, q.Price)
	assert.Equal(t, 50.5, q.Change)
	assert.Equal(t, 1.31, q.ChangePercent)
	assert.Equal(t, 3920.0, q.DayHigh)
	assert.Equal(t, int64(1250000), q.Volume)
	assert.Equal(t, "NSI", q.Exchange)
	assert.Equal(t, "REGULAR", q.MarketState)
	assert.Equal(t, int64(1700000000), q.Timestamp)
}

func TestParseYahooChartPrevCloseFallback(t *testing.T) {
	body := []byte(`{"chart":{"result":[{"meta":{
		"regularMarketPrice":200.0,"chartPreviousClose":190.0,
		"regularMarketTime":1700000000}}],"error":null}}`)

	q, err := parseYahooChart("AAPL", body)
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.Change)
	assert.Equal(t, 5.26, q.ChangePercent)
	assert.Equal(t, "AAPL", q.Name)
	assert.Equal(t, "US", q.Exchange)
}

func TestParseYahooChartErrors(t *testing.T) {
	_, err := parseYahooChart("NOPE", []byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")

	_, err = parseYahooChart("NOPE", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data for symbol")

	_, err = parseYahooChart("ZERO", []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0}}]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid price")
}

func TestYahooProviderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second, nil)
	p.baseURL = srv.URL + "/"

	_, _, err := p.GetQuotes(context.Background(), []string{"TCS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".NS or .BO suffix")
}

func TestYahooProviderRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, browserUA, r.Header.Get("User-Agent"))
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":250.0,"previousClose":245.0,"regularMarketTime":1700000000}}]}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second, nil)
	p.baseURL = srv.URL + "/"

	quotes, source, err := p.GetQuotes(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "yahoo", source)
	require.Len(t, quotes, 1)
	assert.Equal(t, 250.0, quotes[0].Price)
	assert.Equal(t, int64(3), hits.Load())
}

func TestMultiProviderFallsBack(t *testing.T) {
	broken := &fakeProvider{err: errors.New("upstream down")}
	healthy := &fakeProvider{source: "backup"}
	mp := NewMultiProvider(broken, healthy)

	quotes, source, err := mp.GetQuotes(context.Background(), []string{"INFY.NS"})
	require.NoError(t, err)
	assert.Equal(t, "backup", source)
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(1), broken.calls.Load())
	assert.Equal(t, int64(1), healthy.calls.Load())
}

func TestMultiProviderAllFail(t *testing.T) {
	mp := NewMultiProvider(
		&fakeProvider{err: errors.New("first down")},
		&fakeProvider{err: errors.New("second down")},
	)
	_, _, err := mp.GetQuotes(context.Background(), []string{"INFY.NS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second down")

	_, _, err = NewMultiProvider().GetQuotes(context.Background(), []string{"INFY.NS"})
	require.Error(t, err)
}

func TestServiceThrottlesRefresh(t *testing.T) {
	fp := &fakeProvider{source: "fake"}
	svc := NewService(fp, time.Minute, nil, nil)

	quotes, cached, source, _, warnings, err := svc.GetQuotesWithMeta(context.Background(), []string{"TCS.NS"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fake", source)
	assert.Empty(t, warnings)
	require.Len(t, quotes, 1)

	quotes, cached, source, _, warnings, err = svc.GetQuotesWithMeta(context.Background(), []string{"tcs.ns"})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "cache", source)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "throttled")
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(1), fp.calls.Load())
}

func TestServiceServesStaleOnFailure(t *testing.T) {
	fp := &fakeProvider{source: "fake"}
	svc := NewService(fp, 0, nil, nil)

	_, _, _, _, _, err := svc.GetQuotesWithMeta(context.Background(), []string{"TCS.NS"})
	require.NoError(t, err)

	fp.err = errors.New("boom")
	quotes, cached, source, _, warnings, err := svc.GetQuotesWithMeta(context.Background(), []string{"TCS.NS"})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "cache", source)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "serving cached")
	require.Len(t, quotes, 1)

	// Nothing cached for an unseen symbol, so the failure surfaces.
	_, _, _, _, _, err = svc.GetQuotesWithMeta(context.Background(), []string{"INFY.NS"})
	require.Error(t, err)
}

func TestServiceGetQuote(t *testing.T) {
	fp := &fakeProvider{source: "fake"}
	svc := NewService(fp, 0, nil, nil)

	q, cached, err := svc.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "AAPL", q.Symbol)

	_, _, _, _, _, err = svc.GetQuotesWithMeta(context.Background(), nil)
	require.Error(t, err)
}

func TestServiceNextPollInterval(t *testing.T) {
	svc := NewService(&fakeProvider{}, 0, nil, nil)
	base := time.Minute

	assert.Equal(t, base, svc.nextPollInterval(base, false))

	svc.consecutiveFailures = 1
	assert.Equal(t, base, svc.nextPollInterval(base, true))
	svc.consecutiveFailures = 3
	assert.Equal(t, 2*base, svc.nextPollInterval(base, true))
	svc.consecutiveFailures = 6
	assert.Equal(t, 4*base, svc.nextPollInterval(base, true))
}

func TestNormalizeSymbols(t *testing.T) {
	got := normalizeSymbols([]string{" tcs.ns", "TCS.NS", "", "aapl", "AAPL "})
	assert.Equal(t, []string{"TCS.NS", "AAPL"}, got)
	assert.Empty(t, normalizeSymbols(nil))
}

func TestTokenBucket(t *testing.T) {
	disabled := NewTokenBucket(0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, disabled.Allow())
	}
	assert.True(t, (*TokenBucket)(nil).Allow())

	b := NewTokenBucket(60, 2)
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
	assert.True(t, b.WaitForToken(2*time.Second))
	assert.False(t, b.WaitForToken(10*time.Millisecond))
}
