package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/camberg23/el-goose/internal/elgoose"
)

// ToolHandler executes the tool calls the model requests. There is a
// single generic tool; every query the model can make maps onto one
// Normalizer invocation.
type ToolHandler struct {
	normalizer *elgoose.Normalizer
	logger     zerolog.Logger
}

func NewToolHandler(normalizer *elgoose.Normalizer, logger zerolog.Logger) *ToolHandler {
	return &ToolHandler{
		normalizer: normalizer,
		logger:     logger,
	}
}

// ExecuteTool returns the JSON tool result fed back to the model. An
// error here means the model supplied malformed parameters; upstream
// API failures come back inside the JSON, not as errors.
func (h *ToolHandler) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case "query_elgoose_api":
		return h.queryAPI(ctx, input)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (h *ToolHandler) queryAPI(ctx context.Context, input json.RawMessage) (string, error) {
	var req elgoose.QueryRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	if req.Method == "" {
		return "", fmt.Errorf("method is required")
	}

	h.logger.Debug().Str("method", req.Method).Str("column", req.Column).Msg("querying elgoose API")

	return h.normalizer.Normalize(ctx, &req)
}
