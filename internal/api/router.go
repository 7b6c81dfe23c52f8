// Package api wires the HTTP surface: REST endpoints for resolution,
// quotes, search, history and the watchlist, the chat endpoint, and the
// MCP JSON-RPC endpoint with its legacy helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"

	"stock-assistant/internal/chatagent"
	"stock-assistant/internal/market"
	"stock-assistant/internal/mcp"
	"stock-assistant/internal/resolver"
	"stock-assistant/internal/search"
	"stock-assistant/internal/store"
	"stock-assistant/internal/tools"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type WatchRequest struct {
	Query  string `json:"query"`
	Symbol string `json:"symbol"`
}

type RunToolRequest struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// RequestID tags every request so log lines can be correlated across
// handlers. Incoming X-Request-ID headers are kept.
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next(ctx)
	}
}

func RegisterRoutes(h *server.Hertz, st *store.Store, res *resolver.Resolver, mkt *market.Service, eng search.Engine, reg *tools.Registry, rpc *mcp.Service, chat *chatagent.Agent, defaultSymbols []string, baseDir, dbPath string) {
	h.GET("/health", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"base_dir": baseDir,
			"database": dbPath,
		})
	})

	h.GET("/", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]any{
			"name":    "Stock Assistant",
			"version": "1.0.0",
			"endpoints": map[string]any{
				"mcp":        "/mcp",
				"tools_list": "/mcp/tools",
				"chat":       "/api/chat",
				"resolve":    "/api/resolve?q={query}",
				"stock":      "/api/stock/{query}",
				"quotes":     "/api/quotes?symbols={a,b}",
				"search":     "/api/search?q={query}",
				"history":    "/api/history?symbol={symbol}",
				"watchlist":  "/api/watchlist",
				"health":     "/health",
			},
		})
	})

	h.GET("/api/resolve", func(_ context.Context, c *app.RequestContext) {
		if res == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "resolver not configured",
			})
			return
		}
		query := string(c.Query("q"))
		if strings.TrimSpace(query) == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "q is required",
			})
			return
		}
		symbol := res.Resolve(query)
		known := res.Known(symbol)
		if st != nil {
			if err := st.InsertResolution(store.ResolutionRecord{Query: query, Symbol: symbol, Known: known}); err != nil {
				log.Printf("record resolution error: %v", err)
			}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"query":  query,
			"symbol": symbol,
			"known":  known,
		})
	})

	h.GET("/api/stock/:query", func(ctx context.Context, c *app.RequestContext) {
		if res == nil || reg == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "resolver not configured",
			})
			return
		}
		query := c.Param("query")
		symbol := res.Resolve(query)
		if symbol == "" {
			c.JSON(http.StatusBadRequest, map[string]any{"detail": fmt.Sprintf("Could not resolve %q to a symbol", query)})
			return
		}
		result, err, ok := reg.Call(ctx, "get_stock_price", map[string]any{"symbol": symbol})
		if !ok {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "price tool not registered"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, map[string]any{"detail": err.Error()})
			return
		}
		if msg, found := result["error"].(string); found {
			c.JSON(http.StatusBadRequest, map[string]any{"detail": msg})
			return
		}
		result["query"] = query
		result["known"] = res.Known(symbol)
		c.JSON(http.StatusOK, result)
	})

	h.GET("/api/quotes", func(ctx context.Context, c *app.RequestContext) {
		if mkt == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "market service not configured",
			})
			return
		}
		symbols := parseSymbols(string(c.Query("symbols")), defaultSymbols)
		if len(symbols) == 0 {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "symbols is empty",
			})
			return
		}
		quotes, stale, source, sourceTS, warnings, err := mkt.GetQuotesWithMeta(ctx, symbols)
		if err != nil && len(quotes) == 0 {
			c.JSON(http.StatusBadGateway, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("quotes fetch failed: %v", err))
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"stale":     stale,
			"source":    source,
			"source_ts": sourceTS,
			"warnings":  warnings,
			"quotes":    quotes,
		})
	})

	h.GET("/api/search", func(_ context.Context, c *app.RequestContext) {
		if eng == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "search engine not configured",
			})
			return
		}
		query := string(c.Query("q"))
		if strings.TrimSpace(query) == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "q is required",
			})
			return
		}
		limit, err := parseLimit(string(c.Query("limit")), 10)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		results := eng.Search(query, limit)
		if results == nil {
			results = []search.Result{}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"query":   query,
			"count":   len(results),
			"results": results,
		})
	})

	h.GET("/api/history", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		symbol := string(c.Query("symbol"))
		if symbol == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "symbol is required",
			})
			return
		}
		limit, err := parseLimit(string(c.Query("limit")), 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.RecentQuotes(symbol, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"symbol": strings.ToUpper(strings.TrimSpace(symbol)),
			"items":  items,
		})
	})

	h.GET("/api/resolutions", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		limit, err := parseLimit(string(c.Query("limit")), 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.RecentResolutions(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.GET("/api/watchlist", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		items, err := st.ListWatch()
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		if items == nil {
			items = []store.WatchItem{}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.POST("/api/watchlist", func(_ context.Context, c *app.RequestContext) {
		if st == nil || res == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		var req WatchRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		if symbol == "" {
			symbol = res.Resolve(req.Query)
		}
		if symbol == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "symbol or query is required",
			})
			return
		}
		if err := st.AddWatch(symbol, req.Query); err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"symbol": symbol,
			"known":  res.Known(symbol),
		})
	})

	h.DELETE("/api/watchlist/:symbol", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "store not configured",
			})
			return
		}
		symbol := c.Param("symbol")
		removed, err := st.RemoveWatch(symbol)
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"removed": removed,
		})
	})

	h.POST("/api/chat", func(ctx context.Context, c *app.RequestContext) {
		if chat == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"response":  "chat agent not configured",
				"tool_used": nil,
			})
			return
		}
		var req ChatRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusOK, chatagent.Reply{Response: "Error processing request: invalid json body"})
			return
		}
		c.JSON(http.StatusOK, chat.Chat(ctx, req.Message))
	})

	h.GET("/api/chat/ping", func(ctx context.Context, c *app.RequestContext) {
		if chat == nil {
			c.JSON(http.StatusOK, map[string]any{
				"ok":     true,
				"mode":   "fallback",
				"reason": "not configured",
			})
			return
		}
		ping, err := chat.Ping(ctx)
		if err != nil {
			log.Printf("chat ping error: %v", err)
		}
		c.JSON(http.StatusOK, ping)
	})

	h.POST("/mcp", func(ctx context.Context, c *app.RequestContext) {
		if rpc == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"error": "mcp service not configured"})
			return
		}
		body, err := c.Body()
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
			return
		}
		var req mcp.Request
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
			return
		}
		c.JSON(http.StatusOK, rpc.Handle(ctx, req))
	})

	h.GET("/mcp/tools", func(_ context.Context, c *app.RequestContext) {
		if reg == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"error": "registry not configured"})
			return
		}
		c.JSON(http.StatusOK, map[string]any{"tools": reg.List()})
	})

	h.POST("/mcp/run", func(ctx context.Context, c *app.RequestContext) {
		if reg == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"error": "registry not configured"})
			return
		}
		var req RunToolRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
			return
		}
		result, err, ok := reg.Call(ctx, req.Tool, req.Input)
		if !ok {
			c.JSON(http.StatusOK, map[string]any{"error": fmt.Sprintf("Unknown tool: %s", req.Tool)})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseSymbols(raw string, defaults []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
