package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerTools(srv *server.MCPServer, svc *Service) {
	registerListQueueTool(srv, svc)
	registerListHistoryTool(srv, svc)
	registerGetLevelTool(srv, svc)
	registerDeleteLevelTool(srv, svc)
	registerClearQueueTool(srv, svc)
	registerPickRandomTool(srv, svc)
	registerReportLevelTool(srv, svc)
	registerExportQueueTool(srv, svc)
	registerRefreshQueueTool(srv, svc)
	registerStatusTool(srv, svc)
}

func registerListQueueTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_queue",
		mcp.WithDescription("List queued level requests in submission order."),
		mcp.WithBoolean("filtered",
			mcp.Description("Only return levels the streamer's filters admit."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		levels, err := svc.ListQueue(ctx, request.GetBool("filtered", false))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"count":  len(levels),
			"levels": levels,
		})
	})
}

func registerListHistoryTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_history",
		mcp.WithDescription("List levels that were played or cleared, oldest first."),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		levels, err := svc.ListHistory(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"count":  len(levels),
			"levels": levels,
		})
	})
}

func registerGetLevelTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"get_level",
		mcp.WithDescription("Fetch a single queued level by id."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Level id to fetch."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dto, err := svc.LevelByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerDeleteLevelTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"delete_level",
		mcp.WithDescription("Remove a level from the queue and archive it in the history."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Level id to delete."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dto, err := svc.DeleteLevel(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerClearQueueTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"clear_queue",
		mcp.WithDescription("Archive every queued level and empty the queue."),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cleared, err := svc.ClearQueue(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"cleared": len(cleared),
			"levels":  cleared,
		})
	})
}

func registerPickRandomTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"pick_random",
		mcp.WithDescription("Pick a queued level uniformly at random without removing it."),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dto, err := svc.PickRandom(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerReportLevelTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"report_level",
		mcp.WithDescription("Report a queued level to the submission site moderators."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Level id to report."),
		),
		mcp.WithString("reason",
			mcp.Required(),
			mcp.Description("Why the level is being reported."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reason, err := request.RequireString("reason")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := svc.ReportLevel(ctx, id, reason); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("reported level %s", id)), nil
	})
}

func registerExportQueueTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"export_queue",
		mcp.WithDescription("Render the queue as a plain text export."),
		mcp.WithBoolean("filtered",
			mcp.Description("Only export levels the streamer's filters admit."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := svc.ExportQueue(ctx, request.GetBool("filtered", false))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

func registerRefreshQueueTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"refresh_queue",
		mcp.WithDescription("Fetch the queue from the submission site now."),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		levels, err := svc.RefreshQueue(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"count":  len(levels),
			"levels": levels,
		})
	})
}

func registerStatusTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"status",
		mcp.WithDescription("Summarise login state and queue counts."),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := svc.Status(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(st)
	})
}

func toJSONResult(data any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
