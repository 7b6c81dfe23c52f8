package market

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stock-assistant/internal/store"
)

type Service struct {
	provider   Provider
	minRefresh time.Duration
	store      *store.Store
	seeds      []string

	group singleflight.Group

	mu                  sync.Mutex
	cache               map[string]cachedQuote
	consecutiveFailures int
}

type cachedQuote struct {
	quote     Quote
	fetchedAt time.Time
}

type fetchResult struct {
	quotes []Quote
	source string
}

func NewService(provider Provider, minRefresh time.Duration, st *store.Store, seeds []string) *Service {
	if minRefresh < 0 {
		minRefresh = 0
	}
	return &Service{
		provider:   provider,
		minRefresh: minRefresh,
		store:      st,
		seeds:      seeds,
		cache:      make(map[string]cachedQuote),
	}
}

func (s *Service) GetQuote(ctx context.Context, symbol string) (Quote, bool, error) {
	quotes, cached, _, _, _, err := s.GetQuotesWithMeta(ctx, []string{symbol})
	if err != nil {
		return Quote{}, false, err
	}
	if len(quotes) == 0 {
		return Quote{}, false, fmt.Errorf("no quote for symbol: %s", symbol)
	}
	return quotes[0], cached, nil
}

func (s *Service) GetQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes, _, _, _, _, err := s.GetQuotesWithMeta(ctx, symbols)
	return quotes, err
}

func (s *Service) GetQuotesWithMeta(ctx context.Context, symbols []string) ([]Quote, bool, string, int64, []string, error) {
	if s.provider == nil {
		return nil, false, "", 0, nil, fmt.Errorf("market provider not configured")
	}
	syms := normalizeSymbols(symbols)
	if len(syms) == 0 {
		return nil, false, "", 0, nil, fmt.Errorf("symbols is empty")
	}

	now := time.Now()
	s.mu.Lock()
	if s.minRefresh > 0 {
		if cached, ok := s.freshFromCacheLocked(syms, now); ok {
			ts := maxQuoteTS(cached)
			s.mu.Unlock()
			return cached, true, "cache", ts, []string{"refresh throttled, serving cached quotes"}, nil
		}
	}
	s.mu.Unlock()

	// Concurrent requests for the same symbol set share one upstream call.
	v, err, _ := s.group.Do(flightKey(syms), func() (any, error) {
		quotes, source, err := s.provider.GetQuotes(ctx, syms)
		if err != nil {
			return nil, err
		}
		return fetchResult{quotes: quotes, source: source}, nil
	})
	if err == nil {
		res := v.(fetchResult)
		fetchedAt := time.Now()
		s.mu.Lock()
		for _, q := range res.quotes {
			s.cache[strings.ToUpper(q.Symbol)] = cachedQuote{quote: q, fetchedAt: fetchedAt}
		}
		s.consecutiveFailures = 0
		s.mu.Unlock()
		return res.quotes, false, res.source, fetchedAt.Unix(), nil, nil
	}

	s.mu.Lock()
	s.consecutiveFailures++
	cached, ok := s.anyFromCacheLocked(syms)
	ts := maxQuoteTS(cached)
	s.mu.Unlock()
	if ok {
		return cached, true, "cache", ts, []string{fmt.Sprintf("quote fetch failed, serving cached: %v", err)}, nil
	}
	return nil, false, "", 0, nil, err
}

func (s *Service) PollAndStore(ctx context.Context) error {
	symbols := s.watchSymbols()
	if len(symbols) == 0 {
		return nil
	}
	quotes, _, _, _, _, err := s.GetQuotesWithMeta(ctx, symbols)
	if err != nil {
		log.Printf("market poll error: %v", err)
		return err
	}
	for _, q := range quotes {
		s.ingestQuote(q)
	}
	return nil
}

func (s *Service) PollLoop(ctx context.Context, baseInterval time.Duration) {
	if baseInterval <= 0 {
		baseInterval = 5 * time.Minute
	}
	for {
		err := s.PollAndStore(ctx)
		interval := s.nextPollInterval(baseInterval, err != nil)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *Service) nextPollInterval(base time.Duration, failed bool) time.Duration {
	if !failed {
		return base
	}
	s.mu.Lock()
	failures := s.consecutiveFailures
	s.mu.Unlock()
	if failures >= 6 {
		return base * 4
	}
	if failures >= 3 {
		return base * 2
	}
	return base
}

func (s *Service) ingestQuote(q Quote) {
	if q.Symbol == "" || s.store == nil {
		return
	}
	rec := store.QuoteRecord{
		Symbol:        q.Symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Currency:      q.Currency,
		Market:        q.Market,
		FetchedAt:     q.Timestamp,
	}
	if rec.FetchedAt == 0 {
		rec.FetchedAt = time.Now().Unix()
	}
	if err := s.store.InsertQuote(rec); err != nil {
		log.Printf("insert quote history error: %v", err)
	}
}

func (s *Service) watchSymbols() []string {
	out := normalizeSymbols(s.seeds)
	seen := make(map[string]struct{}, len(out))
	for _, sym := range out {
		seen[sym] = struct{}{}
	}
	if s.store != nil {
		items, err := s.store.ListWatch()
		if err != nil {
			log.Printf("list watchlist error: %v", err)
			return out
		}
		for _, it := range items {
			sym := strings.ToUpper(strings.TrimSpace(it.Symbol))
			if sym == "" {
				continue
			}
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

func (s *Service) freshFromCacheLocked(symbols []string, now time.Time) ([]Quote, bool) {
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		c, ok := s.cache[sym]
		if !ok || now.Sub(c.fetchedAt) >= s.minRefresh {
			return nil, false
		}
		out = append(out, c.quote)
	}
	return out, true
}

func (s *Service) anyFromCacheLocked(symbols []string) ([]Quote, bool) {
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		c, ok := s.cache[sym]
		if !ok {
			return nil, false
		}
		out = append(out, c.quote)
	}
	return out, true
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func flightKey(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func maxQuoteTS(quotes []Quote) int64 {
	var maxTS int64
	for _, q := range quotes {
		if q.Timestamp > maxTS {
			maxTS = q.Timestamp
		}
	}
	return maxTS
}
