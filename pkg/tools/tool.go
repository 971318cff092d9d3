// Package tools provides the MCP tool implementations and registry for
// the review gate: every tool opens a popup through the file-based
// signal protocol and blocks until the user answers or the wait times
// out.
package tools

import (
	"context"

	"reviewgate/pkg/gate"
)

// Tool is the contract every review gate tool implements.
type Tool interface {
	// Definition returns the tool definition for the MCP client.
	Definition() ToolDefinition
	// Name returns the tool identifier.
	Name() string
	// PromptDocumentation returns markdown documentation for LLM prompts.
	PromptDocumentation() string
	// Exec executes the tool with the given arguments.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToolDefinition describes a tool in MCP schema form.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is a JSON Schema object describing tool arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single tool argument.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// ExecResult is the outcome of a tool call. Content always carries the
// user-visible text; Attachments carry any files the user attached to
// their response.
type ExecResult struct {
	Content     string
	Attachments []gate.Attachment
}

// GateContext carries the shared popup gate and shutdown state into
// tool construction.
type GateContext struct {
	Gate     *gate.Gate
	Shutdown *gate.Shutdown
}
