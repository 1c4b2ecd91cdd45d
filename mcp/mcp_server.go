package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
	auth "bounty-backend/storage/auth"
)

// MCPServer wraps the mcp-go server with the ledger tools
type MCPServer struct {
	mcpServer *server.MCPServer
	engine    *bounty.Engine
	auth      *auth.Authenticator
	events    *bounty.EventLog
}

// NewMCPServer creates a new MCP server using the mcp-go library. events may
// be nil, in which case list_events is not offered.
func NewMCPServer(engine *bounty.Engine, authn *auth.Authenticator, events *bounty.EventLog) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Bounty Ledger MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		engine:    engine,
		auth:      authn,
		events:    events,
	}

	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *MCPServer) registerTools() {
	// Reads
	s.mcpServer.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List bounty tasks with their escrow state"),
		mcp.WithString("creator", mcp.Description("Only tasks created by this address")),
		mcp.WithString("phase", mcp.Description("open, awaiting_selection, selected, paid, refunded or closed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tasks to return")),
		mcp.WithNumber("offset", mcp.Description("Number of tasks to skip")),
	), s.handleListTasks)

	s.mcpServer.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a task, its escrow and the vault balance"),
		mcp.WithString("task_address", mcp.Required(), mcp.Description("Address of the task")),
	), s.handleGetTask)

	s.mcpServer.AddTool(mcp.NewTool("derive_addresses",
		mcp.WithDescription("Derive the task, escrow, vault, participation and submission addresses"),
		mcp.WithString("creator", mcp.Required(), mcp.Description("Creator address")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Creator-chosen task id")),
		mcp.WithString("participant", mcp.Description("Participant address")),
		mcp.WithString("mint", mcp.Description("Reward mint address")),
	), s.handleDeriveAddresses)

	s.mcpServer.AddTool(mcp.NewTool("list_submissions",
		mcp.WithDescription("List the work submitted to a task"),
		mcp.WithString("task_address", mcp.Required(), mcp.Description("Address of the task")),
	), s.handleListSubmissions)

	if s.events != nil {
		s.mcpServer.AddTool(mcp.NewTool("list_events",
			mcp.WithDescription("Recent committed operations, newest first"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of events to return")),
		), s.handleListEvents)
	}

	// Transactions
	s.registerTransactionTools()
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	creator, err := optionalAddress(args, "creator")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filter := bounty.TaskFilter{
		Creator: creator,
		Phase:   bounty.Phase(toString(args["phase"])),
		Limit:   int(toInt64(args["limit"])),
		Offset:  int(toInt64(args["offset"])),
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return mcp.NewToolResultError("limit and offset must not be negative"), nil
	}
	if filter.Phase != "" && !filter.Phase.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown phase %q", filter.Phase)), nil
	}
	if filter.Limit == 0 {
		filter.Limit = 50
	}

	tasks, err := s.engine.ListTasks(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
	}
	result := map[string]interface{}{
		"tasks":         tasks,
		"total_matches": len(tasks),
	}
	return textResult(fmt.Sprintf("Found %d tasks:", len(tasks)), result)
}

func (s *MCPServer) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	addr, err := requireAddress(request, "task_address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.engine.TaskView(ctx, addr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get task: %v", err)), nil
	}

	result := map[string]interface{}{"task": view}
	if mint, err := s.engine.GetMint(ctx, view.Task.Mint); err == nil {
		result["reward_display"] = bounty.FormatAmount(view.Task.Reward, mint.Decimals) + " " + mint.Symbol
		result["vault_display"] = bounty.FormatAmount(view.VaultBalance, mint.Decimals) + " " + mint.Symbol
	}
	return textResult("Task details:", result)
}

func (s *MCPServer) handleDeriveAddresses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creator, err := requireAddress(request, "creator")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	participant, err := optionalAddress(args, "participant")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mint, err := optionalAddress(args, "mint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	addrs, err := s.engine.Deriver().Addresses(creator, taskID, participant, mint)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to derive addresses: %v", err)), nil
	}
	return textResult("Derived addresses:", addrs)
}

func (s *MCPServer) handleListSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	addr, err := requireAddress(request, "task_address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	subs, err := s.engine.ListSubmissions(ctx, addr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list submissions: %v", err)), nil
	}
	result := map[string]interface{}{
		"submissions": subs,
		"total":       len(subs),
	}
	return textResult(fmt.Sprintf("Found %d submissions:", len(subs)), result)
}

func (s *MCPServer) handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(toInt64(request.GetArguments()["limit"]))
	if limit <= 0 {
		limit = 50
	}
	events := s.events.Recent(limit)
	return textResult(fmt.Sprintf("Found %d events:", len(events)), map[string]interface{}{"events": events})
}

// textResult renders v as indented JSON under a one-line heading.
func textResult(heading string, v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(heading + "\n\n" + string(b)), nil
}

func requireAddress(request mcp.CallToolRequest, key string) (pda.Address, error) {
	raw, err := request.RequireString(key)
	if err != nil {
		return pda.Zero, err
	}
	addr, err := pda.ParseAddress(raw)
	if err != nil {
		return pda.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

func optionalAddress(args map[string]interface{}, key string) (*pda.Address, error) {
	raw := toString(args[key])
	if raw == "" {
		return nil, nil
	}
	addr, err := pda.ParseAddress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &addr, nil
}

// Helper function to convert interface{} to string
func toString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	return fmt.Sprintf("%v", val)
}

// Helper function to convert interface{} to int64
func toInt64(val interface{}) int64 {
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	if f, ok := val.(float64); ok {
		return int64(f)
	}
	if str, ok := val.(string); ok {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return i
		}
	}
	return 0
}
