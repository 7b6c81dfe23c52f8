// Package chatagent turns free-form chat messages into tool calls. The
// language model is instructed to answer either with plain text or with a
// one-line JSON envelope naming a registry tool; the agent parses that
// envelope, executes the tool and renders the result for the user. Without
// an API key the agent falls back to resolving stock queries directly.
package chatagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	openai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"stock-assistant/internal/market"
	"stock-assistant/internal/resolver"
	"stock-assistant/internal/search"
	"stock-assistant/internal/store"
	"stock-assistant/internal/tools"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	TimeoutMs   int
}

// Reply is the chat response envelope. ToolUsed is nil when the model
// answered directly; RawResult carries the unformatted tool output.
type Reply struct {
	Response  string         `json:"response"`
	ToolUsed  *string        `json:"tool_used"`
	RawResult map[string]any `json:"raw_result,omitempty"`
}

// ToolCall is the JSON envelope the model emits when it wants a tool run.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

type Agent struct {
	enabled        bool
	model          *openai.ChatModel
	modelName      string
	disabledReason string

	registry *tools.Registry
	resolver *resolver.Resolver
	market   *market.Service
}

func New(cfg Config, reg *tools.Registry, res *resolver.Resolver, svc *market.Service) *Agent {
	a := &Agent{registry: reg, resolver: res, market: svc}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" {
		log.Printf("chatagent disabled: missing api key")
		a.disabledReason = "api key missing"
		return a
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	maxTokens := 500

	model, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     timeout,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		log.Printf("chatagent init error: %v", err)
		a.disabledReason = "init failed"
		return a
	}

	a.enabled = true
	a.model = model
	a.modelName = cfg.Model
	return a
}

func (a *Agent) Enabled() bool {
	return a != nil && a.enabled
}

func (a *Agent) Ping(ctx context.Context) (map[string]any, error) {
	if !a.Enabled() || a.model == nil {
		reason := a.disabledReason
		if reason == "" {
			reason = "not configured"
		}
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": reason,
		}, nil
	}

	start := time.Now()
	messages := []*schema.Message{
		schema.SystemMessage("Return ONLY valid JSON: {\"ok\":true}. No other text."),
		schema.UserMessage("ping"),
	}
	_, err := a.model.Generate(ctx, messages)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logLLMError(err)
		return map[string]any{
			"ok":     true,
			"mode":   "fallback",
			"reason": "llm error",
		}, err
	}
	return map[string]any{
		"ok":         true,
		"mode":       "llm",
		"model":      a.modelName,
		"latency_ms": latency,
	}, nil
}

// Chat answers one user message. The reply always has a Response; ToolUsed
// and RawResult are set only when a registry tool actually ran.
func (a *Agent) Chat(ctx context.Context, message string) Reply {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{Response: "Please provide a message."}
	}
	if !a.Enabled() || a.model == nil {
		return a.fallbackReply(ctx, message)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt(a.registry)),
		schema.UserMessage(message),
	}
	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		logLLMErrorOnce(err)
		return Reply{Response: fmt.Sprintf("Error connecting to OpenAI: %v", err)}
	}
	text := strings.TrimSpace(resp.Content)
	logLLMOutput(text)

	if call := parseToolCall(text); call != nil && a.registry != nil {
		res, callErr, known := a.registry.Call(ctx, call.Tool, call.Arguments)
		if known && callErr == nil {
			return Reply{
				Response:  formatToolResult(call.Tool, res),
				ToolUsed:  &call.Tool,
				RawResult: res,
			}
		}
		if callErr != nil {
			log.Printf("chatagent tool %s error: %v", call.Tool, callErr)
		}
	}

	// No tool ran, hand the model's text back unchanged.
	return Reply{Response: text}
}

// fallbackReply handles chat without a language model. Messages that resolve
// to a catalog symbol still get a live quote; everything else gets a
// configuration hint.
func (a *Agent) fallbackReply(ctx context.Context, message string) Reply {
	if a.resolver != nil && a.market != nil {
		symbol := a.resolver.Resolve(message)
		if symbol != "" && a.resolver.Known(symbol) {
			name := "get_stock_price"
			q, _, err := a.market.GetQuote(ctx, symbol)
			if err != nil {
				return Reply{Response: "Error: " + err.Error(), ToolUsed: &name}
			}
			res := tools.QuoteResult(q)
			return Reply{
				Response:  formatToolResult(name, res),
				ToolUsed:  &name,
				RawResult: res,
			}
		}
	}
	return Reply{Response: "OpenAI API is not configured. Set OPENAI_API_KEY or llm.api_key in the config file to enable chat."}
}

// systemPrompt instructs the model to either answer naturally or emit the
// JSON tool envelope, listing every registered tool by name.
func systemPrompt(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant for a stock market workspace. ")
	b.WriteString("You can look up stock prices, resolve company names to ticker symbols, ")
	b.WriteString("search the stock catalog, fetch web pages, manage files in the workspace ")
	b.WriteString("folder and manage users in the database.\n\n")

	if reg != nil {
		names := reg.Names()
		if len(names) > 0 {
			b.WriteString("You have access to the following tools:\n")
			for i, name := range names {
				t, _ := reg.Get(name)
				fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.Name, t.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("When the user asks for something a tool can do, respond with a JSON object in this exact format:\n")
	b.WriteString(`{"tool": "tool_name", "arguments": {"arg1": "value1", "arg2": "value2"}}` + "\n\n")
	b.WriteString("Examples:\n")
	b.WriteString(`- "Show all users" -> {"tool": "get_all_users", "arguments": {}}` + "\n")
	b.WriteString(`- "What is the TCS stock price?" -> {"tool": "get_stock_price", "arguments": {"symbol": "TCS.NS"}}` + "\n")
	b.WriteString(`- "Which ticker is apple?" -> {"tool": "resolve_symbol", "arguments": {"query": "apple"}}` + "\n")
	b.WriteString(`- "Delete user 2" -> {"tool": "delete_user", "arguments": {"id": 2}}` + "\n\n")
	b.WriteString("If the user asks a general question that no tool covers, respond naturally without JSON.\n")
	b.WriteString("Always be helpful and concise in your responses.")
	return b.String()
}

var toolCallPattern = regexp.MustCompile(`\{[^{}]*"tool"\s*:\s*"[^"]+"\s*,\s*"arguments"\s*:\s*\{[^{}]*\}[^{}]*\}`)

// parseToolCall extracts a tool envelope from model output. Models wrap the
// JSON in prose or code fences often enough that three attempts are needed:
// the whole string, a regexp match, then the outermost brace span.
func parseToolCall(text string) *ToolCall {
	if call := decodeToolCall(text); call != nil {
		return call
	}
	if m := toolCallPattern.FindString(text); m != "" {
		if call := decodeToolCall(m); call != nil {
			return call
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if call := decodeToolCall(text[start : end+1]); call != nil {
			return call
		}
	}
	return nil
}

func decodeToolCall(s string) *ToolCall {
	var call ToolCall
	if err := json.Unmarshal([]byte(s), &call); err != nil {
		return nil
	}
	if call.Tool == "" {
		return nil
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return &call
}

// formatToolResult renders a tool result as chat text. Tools with an obvious
// human shape get a bespoke format; everything else is dumped as JSON.
func formatToolResult(tool string, result map[string]any) string {
	if result == nil {
		result = map[string]any{}
	}
	if msg, ok := result["error"].(string); ok {
		return "Error: " + msg
	}

	switch tool {
	case "get_all_users":
		if users, ok := result["users"].([]store.User); ok {
			if len(users) == 0 {
				return "No users found in the database."
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Found %d user(s):", len(users))
			for i, u := range users {
				fmt.Fprintf(&b, "\n  %d. %s (%s) - ID: %d, Active: %s", i+1, u.Name, u.Email, u.ID, yesNo(u.IsActive))
			}
			return b.String()
		}
	case "get_user_by_id":
		if u, ok := result["user"].(*store.User); ok && u != nil {
			return fmt.Sprintf(
				"User Details:\n  ID: %d\n  Name: %s\n  Email: %s\n  Role: %d\n  Active: %s\n  Created: %s",
				u.ID, u.Name, u.Email, u.Role, yesNo(u.IsActive), u.CreatedAt,
			)
		}
	case "create_user":
		return fmt.Sprintf("User created successfully with ID: %v", result["id"])
	case "update_user":
		return messageOr(result, "User updated successfully")
	case "delete_user":
		return messageOr(result, "User deleted successfully")
	case "get_stock_price":
		return formatQuote(result)
	case "resolve_symbol":
		return formatResolution(result)
	case "search_stocks":
		return formatSearchResults(result)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

func formatQuote(result map[string]any) string {
	symbol := getString(result, "symbol")
	if symbol == "" {
		return "No quote available."
	}
	label := symbol
	if name := getString(result, "name"); name != "" && !strings.EqualFold(name, symbol) {
		label = fmt.Sprintf("%s (%s)", symbol, name)
	}
	currency := getString(result, "currency")
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s is trading at %.2f %s, %+.2f (%+.2f%%).",
		label, getFloat(result, "price"), currency,
		getFloat(result, "change"), getFloat(result, "change_percent"))
}

func formatResolution(result map[string]any) string {
	query := getString(result, "query")
	symbol := getString(result, "symbol")
	if symbol == "" {
		return fmt.Sprintf("Could not resolve %q to a symbol.", query)
	}
	if known, _ := result["known"].(bool); known {
		return fmt.Sprintf("%q resolves to %s.", query, symbol)
	}
	return fmt.Sprintf("%q is not in the catalog; best guess is %s.", query, symbol)
}

func formatSearchResults(result map[string]any) string {
	query := getString(result, "query")
	results, ok := result["results"].([]search.Result)
	if !ok || len(results) == 0 {
		return fmt.Sprintf("No stocks matched %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d stock(s):", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "\n  %d. %s - %s (%s)", i+1, r.Symbol, r.Name, r.Exchange)
	}
	return b.String()
}

func messageOr(result map[string]any, fallback string) string {
	if msg, ok := result["message"].(string); ok && msg != "" {
		return msg
	}
	return fallback
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]any, key string) float64 {
	switch t := m[key].(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		log.Printf("chatagent api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	log.Printf("chatagent error: %v", err)
}

var lastLLMLog time.Time

func logLLMErrorOnce(err error) {
	if time.Since(lastLLMLog) < 5*time.Second {
		return
	}
	lastLLMLog = time.Now()
	logLLMError(err)
}

func logLLMOutput(text string) {
	const maxLen = 800
	out := text
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}
	log.Printf("chatagent output: %s", out)
}
