package tools

import (
	"fmt"
	"strings"
	"sync"
)

// ToolFactory creates a tool instance configured for a gate context.
type ToolFactory func(ctx GateContext) (Tool, error)

// ToolMeta contains metadata about a tool for documentation and discovery.
type ToolMeta struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// toolDescriptor contains the factory and metadata for a tool.
type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// immutableRegistry is the global, read-only tool registry.
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

// Global registry instance - initialized in init().
//
//nolint:gochecknoglobals // Factory pattern requires global registry
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory to the global registry.
// Panics if called after the registry is sealed.
func Register(name string, factory ToolFactory, meta *ToolMeta) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}

	globalRegistry.tools[name] = toolDescriptor{
		meta:    *meta,
		factory: factory,
	}
}

// Seal prevents further tool registrations.
// Called automatically when the first ToolProvider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// ListTools returns metadata for all registered tools.
func ListTools() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(globalRegistry.tools))
	//nolint:gocritic // rangeValCopy: Direct access is clearer than pointer dereferencing
	for _, desc := range globalRegistry.tools {
		result = append(result, desc.meta)
	}
	return result
}

// ToolProvider creates and manages tool instances for one gate context.
type ToolProvider struct {
	ctx      GateContext
	tools    map[string]Tool
	allowSet map[string]struct{}
	mu       sync.Mutex
}

// NewProvider creates a new ToolProvider for the given gate context and
// allowed tools. Automatically seals the global registry on first use.
func NewProvider(ctx GateContext, allowedTools []string) *ToolProvider {
	Seal() // Ensure registry is immutable

	allowSet := make(map[string]struct{}, len(allowedTools))
	for _, name := range allowedTools {
		allowSet[name] = struct{}{}
	}

	return &ToolProvider{
		ctx:      ctx,
		tools:    make(map[string]Tool),
		allowSet: allowSet,
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allowSet[name]; !ok {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}

	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}

	p.tools[name] = tool
	return tool, nil
}

// Must is like Get but panics on error. Use for tools that must exist.
func (p *ToolProvider) Must(name string) Tool {
	tool, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return tool
}

// List returns metadata for all allowed tools.
func (p *ToolProvider) List() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(p.allowSet))
	for name := range p.allowSet {
		if desc, ok := globalRegistry.tools[name]; ok {
			result = append(result, desc.meta)
		}
	}
	return result
}

// GenerateToolDocumentation creates markdown documentation for this
// provider's allowed tools.
func (p *ToolProvider) GenerateToolDocumentation() string {
	tools := p.List()
	if len(tools) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	//nolint:gocritic // rangeValCopy: Direct access is clearer than pointer dereferencing
	for _, meta := range tools {
		doc.WriteString(fmt.Sprintf("- **%s** - %s\n", meta.Name, meta.Description))
	}
	return doc.String()
}

// TOOL FACTORY FUNCTIONS

func createReviewGateChatTool(ctx GateContext) (Tool, error) {
	if ctx.Gate == nil {
		return nil, fmt.Errorf("review gate chat tool requires a gate")
	}
	return NewReviewGateChatTool(ctx.Gate), nil
}

func createQuickReviewTool(ctx GateContext) (Tool, error) {
	if ctx.Gate == nil {
		return nil, fmt.Errorf("quick review tool requires a gate")
	}
	return NewQuickReviewTool(ctx.Gate), nil
}

func createFileReviewTool(ctx GateContext) (Tool, error) {
	if ctx.Gate == nil {
		return nil, fmt.Errorf("file review tool requires a gate")
	}
	return NewFileReviewTool(ctx.Gate), nil
}

func createIngestTextTool(ctx GateContext) (Tool, error) {
	if ctx.Gate == nil {
		return nil, fmt.Errorf("ingest text tool requires a gate")
	}
	return NewIngestTextTool(ctx.Gate), nil
}

func createShutdownMCPTool(ctx GateContext) (Tool, error) {
	if ctx.Gate == nil || ctx.Shutdown == nil {
		return nil, fmt.Errorf("shutdown tool requires a gate and shutdown state")
	}
	return NewShutdownMCPTool(ctx.Gate, ctx.Shutdown), nil
}

// init registers all tools in the global registry using the factory pattern.
//
//nolint:gochecknoinits // Factory pattern requires init() for tool registration
func init() {
	Register(ToolReviewGateChat, createReviewGateChatTool, &ToolMeta{
		Name:        ToolReviewGateChat,
		Description: reviewGateChatDescription,
		InputSchema: NewReviewGateChatTool(nil).Definition().InputSchema,
	})

	Register(ToolQuickReview, createQuickReviewTool, &ToolMeta{
		Name:        ToolQuickReview,
		Description: quickReviewDescription,
		InputSchema: NewQuickReviewTool(nil).Definition().InputSchema,
	})

	Register(ToolFileReview, createFileReviewTool, &ToolMeta{
		Name:        ToolFileReview,
		Description: fileReviewDescription,
		InputSchema: NewFileReviewTool(nil).Definition().InputSchema,
	})

	Register(ToolIngestText, createIngestTextTool, &ToolMeta{
		Name:        ToolIngestText,
		Description: ingestTextDescription,
		InputSchema: NewIngestTextTool(nil).Definition().InputSchema,
	})

	Register(ToolShutdownMCP, createShutdownMCPTool, &ToolMeta{
		Name:        ToolShutdownMCP,
		Description: shutdownMCPDescription,
		InputSchema: NewShutdownMCPTool(nil, nil).Definition().InputSchema,
	})
}
