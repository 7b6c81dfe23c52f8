package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/cors"

	"stock-assistant/internal/api"
	"stock-assistant/internal/catalog"
	"stock-assistant/internal/chatagent"
	"stock-assistant/internal/config"
	"stock-assistant/internal/market"
	"stock-assistant/internal/mcp"
	"stock-assistant/internal/resolver"
	"stock-assistant/internal/search"
	"stock-assistant/internal/store"
	"stock-assistant/internal/tools"
)

func main() {
	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))
	h.Use(cors.Default())
	h.Use(api.RequestID())

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	stocks := catalog.Default()
	if cfg.Resolver.AliasesCSV != "" {
		extra, err := catalog.LoadCSV(cfg.Resolver.AliasesCSV)
		if err != nil {
			log.Fatalf("alias csv error: %v", err)
		}
		stocks = append(stocks, extra...)
	}
	table, err := resolver.NewTable(catalog.AliasEntries(stocks))
	if err != nil {
		log.Fatalf("alias table error: %v", err)
	}
	res := resolver.New(table)

	eng, err := search.NewEngine(cfg.Search.Engine, cfg.Search.IndexPath, stocks)
	if err != nil {
		log.Fatalf("search engine error: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Printf("search close error: %v", err)
		}
	}()

	timeout := time.Duration(cfg.Market.TimeoutMs) * time.Millisecond
	limiter := market.NewTokenBucket(cfg.Market.RequestsPerMinute, 5)
	provider := buildProvider(cfg.Market.Provider, timeout, limiter)
	mktSvc := market.NewService(provider, time.Duration(cfg.Market.MinRefreshSec)*time.Second, st, cfg.Watchlist)

	files, err := tools.NewFileTools(cfg.Files.BaseDir, cfg.Files.MaxFileBytes)
	if err != nil {
		log.Fatalf("file tools error: %v", err)
	}
	reg := tools.DefaultRegistry(
		files,
		tools.NewWebTools(0),
		tools.NewStockTools(res, mktSvc, eng, st),
		tools.NewUserTools(st),
	)
	rpc := mcp.NewService(reg, "stock-assistant", "1.0.0")

	chat := chatagent.New(chatagent.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		TimeoutMs:   cfg.LLM.TimeoutMs,
	}, reg, res, mktSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Market.PollIntervalSec > 0 {
		go mktSvc.PollLoop(ctx, time.Duration(cfg.Market.PollIntervalSec)*time.Second)
	}

	api.RegisterRoutes(h, st, res, mktSvc, eng, reg, rpc, chat, cfg.Watchlist, cfg.Files.BaseDir, cfg.Store.Sqlite.Path)

	log.Printf("catalog loaded: %d stocks, %d aliases", len(stocks), table.Len())
	log.Printf("tools registered: %d (chat enabled=%v)", len(reg.Names()), chat.Enabled())
	log.Printf("server starting on %s", addr)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}

func buildProvider(kind string, timeout time.Duration, limiter *market.TokenBucket) market.Provider {
	switch kind {
	case "yahoo":
		return market.NewYahooProvider(timeout, limiter)
	case "financego":
		return market.NewFinanceGoProvider()
	default:
		// Yahoo first, the finance-go client as fallback.
		return market.NewMultiProvider(
			market.NewYahooProvider(timeout, limiter),
			market.NewFinanceGoProvider(),
		)
	}
}
