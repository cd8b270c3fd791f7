package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerResources(srv *server.MCPServer, svc *Service) {
	registerQueueResource(srv, svc)
	registerHistoryResource(srv, svc)
	registerLevelTemplate(srv, svc)
}

func registerQueueResource(srv *server.MCPServer, svc *Service) {
	resource := mcp.NewResource(
		"levelreq://queue",
		"Queue",
		mcp.WithResourceDescription("Queued level requests in submission order."),
		mcp.WithMIMEType("application/json"),
	)

	srv.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		levels, err := svc.ListQueue(ctx, false)
		if err != nil {
			return nil, err
		}
		payload := map[string]any{
			"levels": levels,
			"count":  len(levels),
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

func registerHistoryResource(srv *server.MCPServer, svc *Service) {
	resource := mcp.NewResource(
		"levelreq://history",
		"History",
		mcp.WithResourceDescription("Levels that left the queue, oldest first."),
		mcp.WithMIMEType("application/json"),
	)

	srv.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		levels, err := svc.ListHistory(ctx)
		if err != nil {
			return nil, err
		}
		payload := map[string]any{
			"levels": levels,
			"count":  len(levels),
		}
		return encodeResourceJSON(request.Params.URI, payload)
	})
}

func registerLevelTemplate(srv *server.MCPServer, svc *Service) {
	template := mcp.NewResourceTemplate(
		"levelreq://levels/{id}",
		"Level Details",
		mcp.WithTemplateDescription("Detailed information about a queued level."),
		mcp.WithTemplateMIMEType("application/json"),
	)

	srv.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id, _ := request.Params.Arguments["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("level id is required")
		}

		dto, err := svc.LevelByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return encodeResourceJSON(request.Params.URI, map[string]any{"level": dto})
	})
}

func encodeResourceJSON(uri string, payload any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
