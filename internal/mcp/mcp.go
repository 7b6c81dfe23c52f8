// Package mcp speaks the Model Context Protocol's JSON-RPC dialect over
// the tool registry: initialize, tools/list, and tools/call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"stock-assistant/internal/tools"
)

const protocolVersion = "2024-11-05"

const (
	codeMethodNotFound = -32601
	codeToolError      = -32000
)

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

type Params struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Service struct {
	registry *tools.Registry
	name     string
	version  string
}

func NewService(registry *tools.Registry, name, version string) *Service {
	if name == "" {
		name = "stock-assistant"
	}
	if version == "" {
		version = "1.0.0"
	}
	return &Service{registry: registry, name: name, version: version}
}

func (s *Service) Handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]any{
				"protocolVersion": protocolVersion,
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo": map[string]any{
					"name":    s.name,
					"version": s.version,
				},
			},
		}
	case "tools/list":
		return Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]any{"tools": s.registry.List()},
		}
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return errResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Service) callTool(ctx context.Context, req Request) Response {
	res, err, ok := s.registry.Call(ctx, req.Params.Name, req.Params.Arguments)
	if !ok {
		return errResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Unknown tool: %s", req.Params.Name))
	}
	if err != nil {
		return errResponse(req.ID, codeToolError, err.Error())
	}
	text, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errResponse(req.ID, codeToolError, err.Error())
	}
	return Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": string(text)},
			},
		},
	}
}

func errResponse(id any, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
