package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const maxListLimit = 100

// NewMCPServer creates an MCP server with the content generation tools registered.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"socialagent",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("socialagent generates social media posts and product marketing campaigns."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_post",
			mcp.WithDescription("Generate three caption options, hashtags and an image for a topic."),
			mcp.WithString("topic", mcp.Description("What the post is about"), mcp.Required()),
		),
		mcpGeneratePost(deps),
	)
	s.AddTool(
		mcp.NewTool("run_campaign",
			mcp.WithDescription("Run the campaign agent for a catalog product and store the resulting campaign."),
			mcp.WithString("product_id", mcp.Description("Catalog product ID, e.g. prod_001"), mcp.Required()),
		),
		mcpRunCampaign(deps),
	)
	s.AddTool(
		mcp.NewTool("list_campaigns",
			mcp.WithDescription("List stored campaigns, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of campaigns (default 20)")),
		),
		mcpListCampaigns(deps),
	)
	s.AddTool(
		mcp.NewTool("search_campaigns",
			mcp.WithDescription("Semantically search stored campaigns."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchCampaigns(deps),
	)

	return s
}

func mcpGeneratePost(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}

		post, err := deps.Generator.SocialPost(ctx, topic)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}
		return mcpJSON(post)
	}
}

func mcpRunCampaign(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		productID, err := req.RequireString("product_id")
		if err != nil {
			return mcpError("product_id is required"), nil
		}

		run := deps.Campaigns.Start(ctx, productID)
		c, err := run.Wait()
		if err != nil {
			return mcpError(fmt.Sprintf("campaign failed: %v", err)), nil
		}
		return mcpJSON(campaignResponse{RunID: run.ID, Campaign: c, Events: run.Log()})
	}
}

func mcpListCampaigns(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		all, err := deps.History.List(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing campaigns failed: %v", err)), nil
		}
		return mcpJSON(page(all, limit, 0))
	}
}

func mcpSearchCampaigns(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		hits, err := searchCampaigns(ctx, deps, query, req.GetInt("limit", defaultSearchLimit))
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(hits)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
