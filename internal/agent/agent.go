package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/history"
	"github.com/araval/sahayak-go/internal/llm"
	"github.com/araval/sahayak-go/internal/logger"
	"github.com/araval/sahayak-go/pkg/tools"
)

// FSM States
type FSMState stateless.State

var (
	StateReadyToCallLLM      FSMState = "ReadyToCallLLM"
	StateAwaitingLLMResponse FSMState = "AwaitingLLMResponse"
	StateExecutingTools      FSMState = "ExecutingTools"
	StateDone                FSMState = "Done"  // Terminal: successful completion
	StateError               FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

// MCPClientInterface defines the methods the agent expects from an MCP client.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

const defaultSystemPrompt = "You are an expert personal assistant that manages the user's Google Calendar, finds the weather of any place, and fetches current news headlines. " +
	"Use the create_calendar_event tool whenever the user asks to schedule, book, or plan an event; always infer summary, start_time, end_time, and timezone from the prompt. " +
	"Use the get_weather tool whenever the user asks about the weather of a location. " +
	"Use the news_tool whenever the user asks for current news, top headlines, or news about a specific subject. " +
	"When a tool returns output, display the information in a clear and organized format."

// Agent dispatches user requests to the LLM and executes at most the
// tools it requests per turn: builtin tools first, then tools from any
// attached MCP servers.
type Agent struct {
	llmClient           llm.Client
	cfg                 config.LLMConfig
	manager             *tools.ToolManager
	mcpClients          []MCPClientInterface
	mcpToolOwner        map[string]MCPClientInterface
	availableLLMTools   []openai.Tool
	discoveredPrompts   []string
	defaultSystemPrompt string
}

// New creates a new agent. Builtin tools come from the manager;
// additional tools are discovered from the configured MCP servers.
func New(llmClient llm.Client, appCfg config.Config, manager *tools.ToolManager) *Agent {
	a := &Agent{
		llmClient:           llmClient,
		cfg:                 appCfg.LLM,
		manager:             manager,
		mcpClients:          make([]MCPClientInterface, 0, len(appCfg.MCPServers)),
		mcpToolOwner:        make(map[string]MCPClientInterface),
		defaultSystemPrompt: defaultSystemPrompt,
	}

	for _, t := range manager.List() {
		a.availableLLMTools = append(a.availableLLMTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
		logger.L.Info("registered builtin tool for LLM", "tool", t.Name())
	}

	a.attachMCPServers(context.Background(), appCfg.MCPServers)

	return a
}

// attachMCPServers connects, initializes and lists tools for each
// configured MCP server. A failing server is skipped, never fatal.
func (a *Agent) attachMCPServers(ctx context.Context, servers []config.MCPServerConfig) {
	for _, serverCfg := range servers {
		var mcpC *client.Client
		var err error

		switch serverCfg.Type {
		case config.ClientTypeSSE:
			var sseOpts []transport.ClientOption
			if len(serverCfg.Headers) > 0 {
				sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
		case config.ClientTypeStreamableHTTP:
			var httpOpts []transport.StreamableHTTPCOption
			if len(serverCfg.Headers) > 0 {
				httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
		case config.ClientTypeStdio:
			var env []string
			for k, v := range serverCfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
			mcpC, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
		default:
			logger.L.Warn("unsupported MCP server type; skipping. Supported types are 'sse', 'streamable_http' or 'stdio'", "type", serverCfg.Type, "name", serverCfg.Name)
			continue
		}
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		// stdio transports are started internally by the client
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(ctx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				if cerr := mcpC.Close(); cerr != nil {
					logger.L.Warn("MCP client close error after start failure", "error", cerr)
				}
				continue
			}
		}

		initResult, err := mcpC.Initialize(ctx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		})
		if err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
		logger.L.Info("MCP server initialized", "name", serverCfg.Name)
		a.mcpClients = append(a.mcpClients, mcpC)

		if initResult != nil && initResult.Capabilities.Prompts != nil {
			if prompt := discoverSystemPrompt(ctx, mcpC, serverCfg.Name); prompt != "" {
				a.discoveredPrompts = append(a.discoveredPrompts, prompt)
				logger.L.Info("discovered system prompt from MCP server", "name", serverCfg.Name)
			}
		}

		serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		for _, mcpTool := range serverTools.Tools {
			a.registerMCPTool(mcpC, mcpTool, serverCfg.Name)
		}
	}
}

// discoverSystemPrompt fetches the first argument-less prompt from a
// server and returns its first assistant message, if any.
func discoverSystemPrompt(ctx context.Context, mcpC *client.Client, serverName string) string {
	prompts, err := mcpC.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		logger.L.Warn("failed to list prompts", "name", serverName, "error", err)
		return ""
	}

	idx := slices.IndexFunc(prompts.Prompts, func(p mcp.Prompt) bool {
		return len(p.Arguments) == 0
	})
	if idx == -1 {
		return ""
	}

	prompt, err := mcpC.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{Name: prompts.Prompts[idx].Name},
	})
	if err != nil {
		logger.L.Warn("failed to get prompt", "name", serverName, "error", err)
		return ""
	}

	msgIdx := slices.IndexFunc(prompt.Messages, func(m mcp.PromptMessage) bool {
		return m.Role == "assistant"
	})
	if msgIdx == -1 {
		return ""
	}
	if content, ok := prompt.Messages[msgIdx].Content.(mcp.TextContent); ok {
		return content.Text
	}
	return ""
}

func (a *Agent) registerMCPTool(mcpC MCPClientInterface, mcpTool mcp.Tool, serverName string) {
	if _, err := a.manager.GetTool(mcpTool.Name); err == nil {
		logger.L.Warn("MCP tool shadows a builtin tool; skipping", "tool", mcpTool.Name, "name", serverName)
		return
	}
	if _, exists := a.mcpToolOwner[mcpTool.Name]; exists {
		logger.L.Warn("MCP tool already registered from another server; skipping", "tool", mcpTool.Name, "name", serverName)
		return
	}

	paramsSchema := json.RawMessage(mcpTool.RawInputSchema)
	if len(paramsSchema) == 0 || string(paramsSchema) == "null" {
		schemaBytes, err := json.Marshal(mcpTool.InputSchema)
		if err != nil || string(schemaBytes) == "{}" || string(schemaBytes) == "null" {
			logger.L.Warn("MCP tool has an empty or null schema; using empty object schema", "tool", mcpTool.Name, "name", serverName)
			schemaBytes = json.RawMessage(`{"type": "object", "properties": {}}`)
		}
		paramsSchema = schemaBytes
	}

	a.mcpToolOwner[mcpTool.Name] = mcpC
	a.availableLLMTools = append(a.availableLLMTools, openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			Parameters:  paramsSchema,
		},
	})
	logger.L.Info("registered tool from MCP server for LLM", "tool", mcpTool.Name, "name", serverName)
}

// Process runs one request through the conversation FSM and returns
// the final assistant content. Messages are persisted per session and
// prior session messages are replayed as context.
func (a *Agent) Process(ctx context.Context, sessionID, request string) (string, error) {
	type fsmContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
		maxTurns     int
	}

	systemPrompt := a.defaultSystemPrompt
	if a.cfg.SystemPrompt != "" {
		systemPrompt = a.cfg.SystemPrompt
	}
	for _, p := range a.discoveredPrompts {
		systemPrompt += "\n\n" + p
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, m := range history.List(sessionID) {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: request})
	history.Save(history.Message{SessionID: sessionID, Role: openai.ChatMessageRoleUser, Content: request, CreatedAt: time.Now()})

	fsmCtx := &fsmContext{
		messages: messages,
		maxTurns: 5, // one turn is LLM -> tools -> LLM
	}

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	// ReadyToCallLLM: call the LLM with the accumulated messages.
	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerProcessInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= fsmCtx.maxTurns {
				logger.L.Warn("max interaction turns reached", "maxTurns", fsmCtx.maxTurns)
				fsmCtx.lastError = errors.New("exceeded maximum interaction turns")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("FSM: entering StateReadyToCallLLM", "turn", fsmCtx.currentTurn)

			llmResp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.cfg.Model,
				Messages: fsmCtx.messages,
				Tools:    a.availableLLMTools,
			})
			if err != nil {
				logger.L.Error("LLM call failed", "error", err)
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.llmResponse = &llmResp

			if len(llmResp.Choices) > 0 && len(llmResp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	// ExecutingTools: run every requested tool, append results, loop
	// back to the LLM.
	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateExecutingTools")
			if fsmCtx.llmResponse == nil || len(fsmCtx.llmResponse.Choices) == 0 {
				fsmCtx.lastError = errors.New("cannot execute tools, no LLM response available")
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}

			llmMessage := fsmCtx.llmResponse.Choices[0].Message
			fsmCtx.messages = append(fsmCtx.messages, llmMessage)

			for _, toolCall := range llmMessage.ToolCalls {
				output := a.executeTool(ctx, toolCall.Function.Name, toolCall.Function.Arguments)
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateReadyToCallLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateDone")
			if fsmCtx.llmResponse != nil && len(fsmCtx.llmResponse.Choices) > 0 {
				fsmCtx.finalContent = fsmCtx.llmResponse.Choices[0].Message.Content
			} else if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("no final LLM content response")
			}
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("FSM: entering StateError")
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("reached error state without a specific error")
			}
			return nil
		})

	// The FSM runs synchronously: the reentry below invokes the first
	// LLM call and every subsequent transition until a terminal state.
	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		logger.L.Warn("FSM fire error", "error", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("FSM internal error: %w", err)
	}

	switch currentState {
	case StateDone:
		if fsmCtx.lastError != nil && fsmCtx.finalContent == "" {
			return "", fsmCtx.lastError
		}
		history.Save(history.Message{SessionID: sessionID, Role: openai.ChatMessageRoleAssistant, Content: fsmCtx.finalContent, CreatedAt: time.Now()})
		return fsmCtx.finalContent, nil
	case StateError:
		return "", fsmCtx.lastError
	default:
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("FSM ended in an unexpected state: %v", currentState)
	}
}

// executeTool runs a single tool call. Builtin tools receive the raw
// JSON argument string; MCP tools receive decoded arguments. Failures
// become tool-role content so the LLM can react to them.
func (a *Agent) executeTool(ctx context.Context, toolName, rawArgs string) string {
	if t, err := a.manager.GetTool(toolName); err == nil {
		out, err := t.Run(ctx, rawArgs)
		if err != nil {
			logger.L.Warn("builtin tool failed", "tool", toolName, "error", err)
			return fmt.Sprintf("Error: tool %s failed: %v", toolName, err)
		}
		return out
	}

	mcpC, ok := a.mcpToolOwner[toolName]
	if !ok {
		return "Error: tool not found: " + toolName
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		logger.L.Error("failed to unmarshal tool arguments", "tool", toolName, "error", err)
		return "Error: could not parse arguments for tool " + toolName
	}

	result, err := mcpC.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: toolName, Arguments: toolArgs},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "tool", toolName, "error", err)
		return fmt.Sprintf("Error: tool %s failed: %v", toolName, err)
	}
	if result == nil {
		return "Error: tool " + toolName + " returned no result"
	}

	for _, contentItem := range result.Content {
		if textContent, ok := contentItem.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	if result.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(resultBytes)
}
