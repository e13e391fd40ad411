package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/models"
)

const recentHistoryDays = 14

func (h *handlers) recentHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	start, end, err := defaultTimeRange("", "", h.now(), h.loc)
	if err != nil {
		return nil, err
	}
	start = end.AddDate(0, 0, -recentHistoryDays)

	records, err := h.ds.QueryTrainingRecords(ctx, models.RecordFilter{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(export.Aggregate(records, h.loc))
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
