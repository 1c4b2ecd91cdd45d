package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"bounty-backend/core/bounty"
	auth "bounty-backend/storage/auth"
)

func (s *MCPServer) registerTransactionTools() {
	s.mcpServer.AddTool(mcp.NewTool("issue_challenge",
		mcp.WithDescription("Issue a one-shot nonce the signer must include in its next signed transaction"),
		mcp.WithString("signer", mcp.Required(), mcp.Description("Signer address (base58 ed25519 public key)")),
	), s.handleIssueChallenge)

	s.mcpServer.AddTool(mcp.NewTool("submit_transaction",
		mcp.WithDescription("Submit a signed ledger operation. The signature covers \"bounty-tx:v1\\n<op>\\n<nonce>\\n<payload>\"."),
		mcp.WithString("op", mcp.Required(), mcp.Enum(opNames()...), mcp.Description("Operation name")),
		mcp.WithString("signer", mcp.Required(), mcp.Description("Signer address")),
		mcp.WithString("nonce", mcp.Required(), mcp.Description("Nonce from issue_challenge")),
		mcp.WithString("signature", mcp.Required(), mcp.Description("base58 ed25519 signature")),
		// A string, not an object: the signature covers these exact bytes.
		mcp.WithString("payload", mcp.Required(), mcp.Description("JSON payload exactly as signed")),
	), s.handleSubmitTransaction)
}

func opNames() []string {
	names := make([]string, len(bounty.Ops))
	for i, op := range bounty.Ops {
		names[i] = string(op)
	}
	return names
}

func (s *MCPServer) handleIssueChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	signer, err := requireAddress(request, "signer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ch, err := s.auth.Issue(ctx, signer)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to issue challenge: %v", err)), nil
	}
	return textResult("Challenge issued:", ch)
}

func (s *MCPServer) handleSubmitTransaction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opName, err := request.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op := bounty.Op(opName)
	if !op.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown operation %q", opName)), nil
	}
	signer, err := requireAddress(request, "signer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nonce, err := request.RequireString("nonce")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	signature, err := request.RequireString("signature")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, err := request.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	env := auth.Envelope{Signer: signer, Nonce: nonce, Signature: signature, Payload: json.RawMessage(payload)}
	who, err := s.auth.Authenticate(ctx, op, env)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", bounty.Code(err), err)), nil
	}
	ev, err := s.engine.Execute(ctx, op, who, env.Payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", bounty.Code(err), err)), nil
	}
	return textResult(fmt.Sprintf("Committed %s:", op), map[string]interface{}{
		"success": true,
		"event":   ev,
	})
}
