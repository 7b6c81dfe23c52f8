package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-assistant/internal/tools"
)

func testService(t *testing.T) *Service {
	t.Helper()
	ft, err := tools.NewFileTools(filepath.Join(t.TempDir(), "base"), 0)
	require.NoError(t, err)
	reg := tools.DefaultRegistry(ft, tools.NewWebTools(time.Second), nil, nil)
	return NewService(reg, "stock-assistant", "1.0.0")
}

func TestInitialize(t *testing.T) {
	svc := testService(t)

	resp := svc.Handle(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "initialize"})
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, float64(1), resp.ID)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.Equal(t, map[string]any{"tools": map[string]any{}}, result["capabilities"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "stock-assistant", info["name"])
	assert.Equal(t, "1.0.0", info["version"])
}

func TestToolsList(t *testing.T) {
	svc := testService(t)

	resp := svc.Handle(context.Background(), Request{ID: "list-1", Method: "tools/list"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "list-1", resp.ID)

	result := resp.Result.(map[string]any)
	listing := result["tools"].([]map[string]any)
	require.Len(t, listing, 8)
	assert.Equal(t, "list_directory", listing[0]["name"])
}

func TestToolsCall(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	resp := svc.Handle(ctx, Request{ID: float64(2), Method: "tools/call", Params: Params{
		Name:      "write_file",
		Arguments: map[string]any{"path": "hello.txt", "content": "hi there"},
	}})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	content := result["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0]["type"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), &payload))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "hello.txt", payload["path"])

	resp = svc.Handle(ctx, Request{ID: float64(3), Method: "tools/call", Params: Params{
		Name:      "read_file",
		Arguments: map[string]any{"path": "hello.txt"},
	}})
	require.Nil(t, resp.Error)
	content = resp.Result.(map[string]any)["content"].([]map[string]any)
	require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), &payload))
	assert.Equal(t, "hi there", payload["content"])
}

func TestToolsCallErrors(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	resp := svc.Handle(ctx, Request{ID: float64(4), Method: "tools/call", Params: Params{Name: "bogus"}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
	assert.Equal(t, "Unknown tool: bogus", resp.Error.Message)
	assert.Nil(t, resp.Result)

	resp = svc.Handle(ctx, Request{ID: float64(5), Method: "tools/call", Params: Params{
		Name:      "read_file",
		Arguments: map[string]any{"path": "../../outside"},
	}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32000, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Access denied")
}

func TestUnknownMethod(t *testing.T) {
	svc := testService(t)

	resp := svc.Handle(context.Background(), Request{ID: nil, Method: "resources/list"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
	assert.Equal(t, "Method not found: resources/list", resp.Error.Message)
	assert.Nil(t, resp.ID)
}

func TestResponseMarshalling(t *testing.T) {
	resp := errResponse(nil, -32601, "Method not found: x")
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"Method not found: x"}}`, string(data))

	ok := Response{JSONRPC: "2.0", ID: float64(7), Result: map[string]any{"x": 1}}
	data, err = json.Marshal(ok)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "error")
}
