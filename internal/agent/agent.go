package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/camberg23/el-goose/internal/elgoose"
	"github.com/camberg23/el-goose/internal/llm"
)

// Agent runs the conversational loop: the model either answers
// directly or requests a tool call, whose result is appended to the
// transcript and fed back until the model produces a final answer.
type Agent struct {
	router       llm.Router
	toolHandler  *ToolHandler
	logger       zerolog.Logger
	maxTurns     int
	systemPrompt string
	tools        []llm.ToolDefinition
}

func NewAgent(router llm.Router, normalizer *elgoose.Normalizer, logger zerolog.Logger) *Agent {
	return &Agent{
		router:       router,
		toolHandler:  NewToolHandler(normalizer, logger),
		logger:       logger,
		maxTurns:     15,
		systemPrompt: getSystemPrompt(),
		tools:        getToolDefinitions(),
	}
}

func (a *Agent) Chat(ctx context.Context, userMessage string, history []Message) (string, []Message, error) {
	client := a.router.Route(userMessage)
	if client == nil {
		return "", nil, fmt.Errorf("no LLM client available - set ANTHROPIC_API_KEY or ensure Ollama is running")
	}

	a.logger.Info().Str("client", client.Name()).Str("query", truncate(userMessage, 50)).Msg("routing query")

	messages := a.buildMessages(history, userMessage)
	var finalResponse string
	turn := 0

	for turn < a.maxTurns {
		turn++
		a.logger.Debug().Int("turn", turn).Str("client", client.Name()).Msg("agent turn")

		resp, err := client.Chat(ctx, messages, a.tools, a.systemPrompt)
		if err != nil {
			if cloud := a.cloudFallback(client); cloud != nil {
				a.logger.Warn().Err(err).Str("client", client.Name()).Msg("model failed, retrying turn on cloud")
				client = cloud
				continue
			}
			return "", nil, fmt.Errorf("LLM error: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			finalResponse = resp.Content
			history = append(history, Message{Role: "user", Content: userMessage})
			history = append(history, Message{Role: "assistant", Content: resp.Content})
			break
		}

		assistantContent := resp.Content
		toolCallsJSON, _ := json.Marshal(resp.ToolCalls)
		assistantContent += "\n[Tool calls: " + string(toolCallsJSON) + "]"
		messages = append(messages, llm.Message{Role: "assistant", Content: assistantContent})

		var toolResultsContent string
		for _, tc := range resp.ToolCalls {
			a.logger.Info().Str("tool", tc.Name).Msg("executing tool")

			result, err := a.toolHandler.ExecuteTool(ctx, tc.Name, tc.Input)
			if err != nil {
				// Malformed parameters flow back to the model as text
				// so it can rephrase or retry rather than killing the
				// whole turn.
				a.logger.Error().Err(err).Str("tool", tc.Name).Msg("tool execution failed")
				result = fmt.Sprintf("Error: %v", err)
			}

			toolResultsContent += fmt.Sprintf("\n[Tool result for %s (id=%s)]: %s\n", tc.Name, tc.ID, result)
		}

		messages = append(messages, llm.Message{Role: "user", Content: toolResultsContent})
	}

	if turn >= a.maxTurns && finalResponse == "" {
		return "", nil, fmt.Errorf("max turns (%d) exceeded", a.maxTurns)
	}

	return finalResponse, history, nil
}

// cloudProvider is satisfied by routers that hold a cloud client in
// reserve for retrying a turn after a local-model failure.
type cloudProvider interface {
	GetCloud() llm.Client
}

// cloudFallback returns the router's cloud client when the failed
// client is a different one, nil otherwise. A nil return means the
// error is terminal for this turn.
func (a *Agent) cloudFallback(failed llm.Client) llm.Client {
	cp, ok := a.router.(cloudProvider)
	if !ok {
		return nil
	}
	cloud := cp.GetCloud()
	if cloud == nil || cloud == failed {
		return nil
	}
	return cloud
}

func (a *Agent) buildMessages(history []Message, currentMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)

	for _, msg := range history {
		messages = append(messages, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: currentMessage,
	})

	return messages
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func getSystemPrompt() string {
	return `You are an assistant that answers questions about the band Goose by calling the ElGoose.net API through the query_elgoose_api tool.

## Endpoint Notes

- The 'latest' method always returns a single show. To fetch multiple recent shows, use method='shows' with order_by='showdate', direction='desc', and limit=<number>.
- Use method='list' with column in ['year','country','state','city','venue','month','day'] for "which years/countries/cities..." questions.
- To count plays of one song, use method='songs' with column='songname' and value=<song>.
- For "top N most played songs", use method='songs' with order_by='times_played'.
- To find guest appearances by a person's name, use method='appearances' with column='name' and value=<person>.

## Response Guidelines

- When summarizing a list endpoint (like /list/country.json), enumerate EVERY value returned in the data. Do not truncate, guess, or paraphrase: if there are eight countries, name all eight.
- Choose the most appropriate parameters so the user gets exactly the data they asked for.
- Give a user-friendly natural-language summary.
- If a tool result contains an error field, tell the user what went wrong by quoting the error message.
- Always include the source URL from the tool result at the end of your answer.`
}

func getToolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: "query_elgoose_api",
			Description: "Make a request to any ElGoose.net API v2 endpoint. " +
				"method is one of ['latest','shows','setlists','songs','venues','jamcharts','albums','metadata','links','uploads','appearances','list']. " +
				"Use column/value to filter, order_by/direction/limit to sort and cap, and artist/showyear with the list method.",
			Parameters: map[string]interface{}{
				"method": map[string]interface{}{
					"type":        "string",
					"enum":        elgoose.KnownMethods,
					"description": "API method name",
				},
				"identifier": map[string]interface{}{
					"type":        "integer",
					"description": "Numeric ID for a specific row (e.g., a show_id)",
				},
				"column": map[string]interface{}{
					"type":        "string",
					"description": "Column name for filtering. With method='list', one of ['year','country','state','city','venue','month','day']",
				},
				"value": map[string]interface{}{
					"type":        "string",
					"description": "Value to filter by (required whenever column is set)",
				},
				"order_by": map[string]interface{}{
					"type":        "string",
					"description": "Column to sort by",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort direction",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Max number of results",
				},
				"artist": map[string]interface{}{
					"type":        "integer",
					"description": "Artist ID for list endpoints (default: 1, which is Goose)",
				},
				"showyear": map[string]interface{}{
					"type":        "integer",
					"description": "Year filter for list endpoints",
				},
				"fmt": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"json", "html"},
					"description": "Response format",
				},
			},
			Required: []string{"method"},
		},
	}
}
