package chatagent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-assistant/internal/catalog"
	"stock-assistant/internal/market"
	"stock-assistant/internal/resolver"
	"stock-assistant/internal/search"
	"stock-assistant/internal/store"
	"stock-assistant/internal/tools"
)

type fakeProvider struct{}

func (fakeProvider) GetQuotes(ctx context.Context, symbols []string) ([]market.Quote, string, error) {
	out := make([]market.Quote, 0, len(symbols))
	for _, s := range symbols {
		mkt, cur := market.MarketForSymbol(s)
		out = append(out, market.Quote{
			Symbol:        s,
			Name:          "Test " + s,
			Market:        mkt,
			Currency:      cur,
			Price:         3900.5,
			Change:        50.5,
			ChangePercent: 1.31,
			Timestamp:     1700000000,
		})
	}
	return out, "fake", nil
}

func testResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	table, err := resolver.NewTable([]resolver.Entry{
		{Alias: "tcs", Symbol: "TCS.NS"},
		{Alias: "apple", Symbol: "AAPL"},
	})
	require.NoError(t, err)
	return resolver.New(table)
}

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain json", `{"tool": "get_all_users", "arguments": {}}`, "get_all_users"},
		{"json inside prose", `Sure, let me check that. {"tool": "get_user_by_id", "arguments": {"id": 2}}`, "get_user_by_id"},
		{"fenced with nested args", "```json\n{\"tool\": \"create_user\", \"arguments\": {\"profile\": {\"level\": 1}}}\n```", "create_user"},
		{"missing arguments key", `{"tool": "get_all_users"}`, "get_all_users"},
		{"plain text", "The weather is sunny today.", ""},
		{"json without tool key", `{"answer": 42}`, ""},
		{"stray braces", "set {a} to {b}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := parseToolCall(tt.text)
			if tt.want == "" {
				assert.Nil(t, call)
				return
			}
			require.NotNil(t, call)
			assert.Equal(t, tt.want, call.Tool)
			assert.NotNil(t, call.Arguments)
		})
	}
}

func TestParseToolCallArguments(t *testing.T) {
	call := parseToolCall(`Here you go: {"tool": "update_user", "arguments": {"id": 3, "name": "Jane"}}`)
	require.NotNil(t, call)
	assert.Equal(t, "update_user", call.Tool)
	assert.Equal(t, float64(3), call.Arguments["id"])
	assert.Equal(t, "Jane", call.Arguments["name"])
}

func TestFormatToolResult(t *testing.T) {
	users := []store.User{
		{ID: 1, Name: "Alice", Email: "alice@example.com", Role: 1, IsActive: true, CreatedAt: "2026-01-02T03:04:05Z"},
		{ID: 2, Name: "Bob", Email: "bob@example.com", Role: 2, IsActive: false, CreatedAt: "2026-01-03T03:04:05Z"},
	}

	tests := []struct {
		name   string
		tool   string
		result map[string]any
		want   string
	}{
		{
			name:   "error short-circuits",
			tool:   "get_all_users",
			result: map[string]any{"error": "Database error: locked"},
			want:   "Error: Database error: locked",
		},
		{
			name:   "all users",
			tool:   "get_all_users",
			result: map[string]any{"users": users, "count": 2},
			want: "Found 2 user(s):\n" +
				"  1. Alice (alice@example.com) - ID: 1, Active: Yes\n" +
				"  2. Bob (bob@example.com) - ID: 2, Active: No",
		},
		{
			name:   "no users",
			tool:   "get_all_users",
			result: map[string]any{"users": []store.User{}, "count": 0},
			want:   "No users found in the database.",
		},
		{
			name:   "user details",
			tool:   "get_user_by_id",
			result: map[string]any{"user": &users[0]},
			want: "User Details:\n  ID: 1\n  Name: Alice\n  Email: alice@example.com\n" +
				"  Role: 1\n  Active: Yes\n  Created: 2026-01-02T03:04:05Z",
		},
		{
			name:   "create user",
			tool:   "create_user",
			result: map[string]any{"success": true, "id": int64(7)},
			want:   "User created successfully with ID: 7",
		},
		{
			name:   "update user message",
			tool:   "update_user",
			result: map[string]any{"message": "User 3 updated successfully"},
			want:   "User 3 updated successfully",
		},
		{
			name:   "delete user fallback",
			tool:   "delete_user",
			result: map[string]any{},
			want:   "User deleted successfully",
		},
		{
			name: "stock price",
			tool: "get_stock_price",
			result: map[string]any{
				"symbol": "TCS.NS", "name": "Tata Consultancy Services",
				"currency": "INR", "price": 3900.5, "change": 50.5, "change_percent": 1.31,
			},
			want: "TCS.NS (Tata Consultancy Services) is trading at 3900.50 INR, +50.50 (+1.31%).",
		},
		{
			name:   "resolution known",
			tool:   "resolve_symbol",
			result: map[string]any{"query": "tcs stock price", "symbol": "TCS.NS", "known": true},
			want:   `"tcs stock price" resolves to TCS.NS.`,
		},
		{
			name:   "resolution guess",
			tool:   "resolve_symbol",
			result: map[string]any{"query": "acme widgets", "symbol": "ACME", "known": false},
			want:   `"acme widgets" is not in the catalog; best guess is ACME.`,
		},
		{
			name:   "resolution empty",
			tool:   "resolve_symbol",
			result: map[string]any{"query": "??", "symbol": "", "known": false},
			want:   `Could not resolve "??" to a symbol.`,
		},
		{
			name: "search results",
			tool: "search_stocks",
			result: map[string]any{
				"query": "tata",
				"results": []search.Result{
					{Stock: catalog.Stock{Symbol: "TCS.NS", Name: "Tata Consultancy Services", Exchange: "NSE"}, Score: 10},
				},
				"count": 1,
			},
			want: "Found 1 stock(s):\n  1. TCS.NS - Tata Consultancy Services (NSE)",
		},
		{
			name:   "search empty",
			tool:   "search_stocks",
			result: map[string]any{"query": "zzz", "results": []search.Result{}, "count": 0},
			want:   `No stocks matched "zzz".`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatToolResult(tt.tool, tt.result))
		})
	}
}

func TestFormatToolResultDefaultDump(t *testing.T) {
	out := formatToolResult("read_file", map[string]any{"path": "notes.txt", "content": "hi"})
	assert.Contains(t, out, `"path": "notes.txt"`)
	assert.Contains(t, out, `"content": "hi"`)
}

func TestSystemPromptListsTools(t *testing.T) {
	reg := tools.NewRegistry(
		tools.Tool{Name: "alpha", Description: "does alpha things", Handler: okHandler},
		tools.Tool{Name: "beta", Description: "does beta things", Handler: okHandler},
	)
	prompt := systemPrompt(reg)

	assert.Contains(t, prompt, "1. alpha - does alpha things")
	assert.Contains(t, prompt, "2. beta - does beta things")
	assert.Contains(t, prompt, `{"tool": "tool_name", "arguments":`)
	assert.Contains(t, prompt, "respond naturally without JSON")
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("OPENAI_BASE_URL", "")

	a := New(Config{}, nil, nil, nil)
	assert.False(t, a.Enabled())

	ping, err := a.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", ping["mode"])
	assert.Equal(t, "api key missing", ping["reason"])
}

func TestChatEmptyMessage(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	a := New(Config{}, nil, nil, nil)

	reply := a.Chat(context.Background(), "   ")
	assert.Equal(t, "Please provide a message.", reply.Response)
	assert.Nil(t, reply.ToolUsed)
}

func TestChatFallbackResolvesQuote(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	svc := market.NewService(fakeProvider{}, 0, nil, nil)
	a := New(Config{}, nil, testResolver(t), svc)

	reply := a.Chat(context.Background(), "tcs stock price")
	require.NotNil(t, reply.ToolUsed)
	assert.Equal(t, "get_stock_price", *reply.ToolUsed)
	assert.Contains(t, reply.Response, "TCS.NS")
	assert.Contains(t, reply.Response, "3900.50 INR")
	require.NotNil(t, reply.RawResult)
	assert.Equal(t, "TCS.NS", reply.RawResult["symbol"])
}

func TestChatFallbackHintForUnknownQuery(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	svc := market.NewService(fakeProvider{}, 0, nil, nil)
	a := New(Config{}, nil, testResolver(t), svc)

	reply := a.Chat(context.Background(), "what is the weather")
	assert.Nil(t, reply.ToolUsed)
	assert.True(t, strings.Contains(reply.Response, "not configured"), "got %q", reply.Response)
}

func okHandler(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}
