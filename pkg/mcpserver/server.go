// Package mcpserver implements the MCP server that exposes the review
// gate tools to the Cursor Agent. The server speaks line-delimited
// JSON-RPC 2.0 over stdio, which is how MCP clients launch and drive
// local servers.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"reviewgate/pkg/logx"
	"reviewgate/pkg/tools"
)

// Server is an MCP server over a reader/writer pair, stdin/stdout in
// production.
type Server struct {
	toolProvider *tools.ToolProvider
	logger       *logx.Logger
	in           io.Reader
	out          io.Writer
	outMu        sync.Mutex
}

// NewServer creates a server bound to stdin/stdout.
func NewServer(toolProvider *tools.ToolProvider, logger *logx.Logger) *Server {
	return NewServerWithStreams(toolProvider, logger, os.Stdin, os.Stdout)
}

// NewServerWithStreams creates a server over explicit streams. Used by
// tests to drive the server through pipes.
func NewServerWithStreams(toolProvider *tools.ToolProvider, logger *logx.Logger, in io.Reader, out io.Writer) *Server {
	if logger == nil {
		logger = logx.NewLogger("mcp-server")
	}
	return &Server{
		toolProvider: toolProvider,
		logger:       logger,
		in:           in,
		out:          out,
	}
}

// Serve reads requests until EOF or context cancellation. EOF means the
// client closed our stdin and is a clean exit, not an error.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("🚀 Review Gate V2 MCP server ready on stdio")

	reader := bufio.NewReader(s.in)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server context cancelled: %w", ctx.Err())
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				s.logger.Info("📡 Client closed stdin, server exiting")
				return nil
			}
			return fmt.Errorf("stdin read error: %w", err)
		}
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var request JSONRPCRequest
		if err := json.Unmarshal(line, &request); err != nil {
			s.sendError(nil, -32700, "Parse error", err.Error())
			continue
		}

		s.handleRequest(ctx, &request)
	}
}

// handleRequest dispatches a JSON-RPC request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "notifications/initialized":
		// No response needed for notifications
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		s.sendError(req.ID, -32601, "Method not found", req.Method)
	}
}

// handleInitialize responds to the MCP initialize request.
func (s *Server) handleInitialize(req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "review-gate-v2",
			"version": "2.0.0",
		},
	}
	s.sendResult(req.ID, result)
}

// handleToolsList returns the list of available tools.
func (s *Server) handleToolsList(req *JSONRPCRequest) {
	s.logger.Info("🔧 Cursor Agent requesting available tools")

	toolMetas := s.toolProvider.List()
	mcpTools := make([]map[string]interface{}, 0, len(toolMetas))
	for i := range toolMetas {
		mcpTools = append(mcpTools, map[string]interface{}{
			"name":        toolMetas[i].Name,
			"description": toolMetas[i].Description,
			"inputSchema": convertInputSchema(toolMetas[i].InputSchema),
		})
	}

	s.logger.Info("✅ Listed %d Review Gate tools", len(mcpTools))
	s.sendResult(req.ID, map[string]interface{}{"tools": mcpTools})
}

// convertInputSchema converts our InputSchema to MCP-compatible format.
func convertInputSchema(schema tools.InputSchema) map[string]interface{} {
	result := map[string]interface{}{
		"type": schema.Type,
	}

	if len(schema.Properties) > 0 {
		props := make(map[string]interface{})
		for name, prop := range schema.Properties { //nolint:gocritic // rangeValCopy acceptable for map iteration
			props[name] = convertProperty(prop)
		}
		result["properties"] = props
	}

	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}

	return result
}

// convertProperty converts a Property to MCP-compatible format.
func convertProperty(prop tools.Property) map[string]interface{} {
	result := map[string]interface{}{
		"type": prop.Type,
	}

	if prop.Description != "" {
		result["description"] = prop.Description
	}
	if prop.Default != nil {
		result["default"] = prop.Default
	}
	if prop.Items != nil {
		result["items"] = convertProperty(*prop.Items)
	}

	return result
}

// handleToolsCall executes a tool and returns the result.
func (s *Server) handleToolsCall(ctx context.Context, req *JSONRPCRequest) {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}

	s.logger.Info("🎯 CURSOR AGENT CALLED TOOL: %s", params.Name)
	s.logger.Info("📋 Tool arguments: %v", params.Arguments)

	tool, err := s.toolProvider.Get(params.Name)
	if err != nil {
		s.logger.Error("❌ Unknown tool: %s - %v", params.Name, err)
		s.sendError(req.ID, -32602, "Tool not found", err.Error())
		return
	}

	result, err := tool.Exec(ctx, params.Arguments)
	if err != nil {
		s.logger.Error("💥 Tool call error for %s: %v", params.Name, err)
		// Return error as tool result (not JSON-RPC error) so the agent sees it
		s.sendResult(req.ID, map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": fmt.Sprintf("ERROR: Tool %s failed: %v", params.Name, err),
				},
			},
			"isError": true,
		})
		return
	}

	s.logger.Info("🔧 Tool %s succeeded: %s", params.Name, logx.Truncate(result.Content, 200))
	s.sendResult(req.ID, buildCallResult(result))
}

// buildCallResult converts an ExecResult into MCP content: one text
// item plus an image item per image attachment.
func buildCallResult(result *tools.ExecResult) map[string]interface{} {
	text := result.Content
	if text == "" {
		text = "Tool executed successfully"
	}

	content := []map[string]interface{}{
		{
			"type": "text",
			"text": text,
		},
	}

	for i := range result.Attachments {
		att := &result.Attachments[i]
		if !strings.HasPrefix(att.MimeType, "image/") {
			continue
		}
		content = append(content, map[string]interface{}{
			"type":     "image",
			"data":     att.Base64Data,
			"mimeType": att.MimeType,
		})
	}

	return map[string]interface{}{"content": content}
}

// JSON-RPC message types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// sendResult sends a successful JSON-RPC response.
func (s *Server) sendResult(id, result interface{}) {
	s.send(&JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// sendError sends an error JSON-RPC response.
func (s *Server) sendError(id interface{}, code int, message, data string) {
	s.send(&JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

// send marshals and writes one line-delimited response. Responses from
// concurrent tool calls serialize on the output mutex so lines never
// interleave.
func (s *Server) send(response *JSONRPCResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("❌ Failed to marshal response: %v", err)
		return
	}
	data = append(data, '\n')

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.Error("❌ Failed to write response: %v", err)
	}
}
